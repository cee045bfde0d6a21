package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RunWithTimeout は fn を timeout 付きのコンテキストで実行します
//
// 期限を過ぎるか親のコンテキストがキャンセルされた時点で、fn の終了を待たずにエラーを返します。
// fn には同じコンテキストが渡されるため、送信途中の処理はキャンセルを見て中断できます
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- fn(runCtx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-runCtx.Done():
		// シグナル等で親が止められた場合はタイムアウトと区別する
		if ctx.Err() != nil {
			return fmt.Errorf("batch process canceled: %w", ctx.Err())
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("batch process timed out after %v: %w", timeout, runCtx.Err())
		}
		return runCtx.Err()
	}
}
