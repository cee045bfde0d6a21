package notifier

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-rsvp/internal/common/utils"
)

// SNSAPI は SMSSender が使う SNS クライアントの操作です
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSSender はSNSでSMSを送信します
type SMSSender struct {
	client SNSAPI
	// 国番号のない電話番号をどの国の番号とみなすか
	region string
}

// NewSMSSender は新しいSMSSenderを作成します
func NewSMSSender(client SNSAPI, region string) *SMSSender {
	return &SMSSender{client: client, region: region}
}

// Send は電話番号をE.164に正規化してからSMSを送信します
func (s *SMSSender) Send(ctx context.Context, phone, text string) error {
	ctx, seg := xray.BeginSubsegment(ctx, "SMSSender.Send")
	defer seg.Close(nil)

	number, err := utils.NormalizePhoneNumber(phone, s.region)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("invalid phone number %q: %w", phone, err)
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(number),
		Message:     aws.String(text),
	})
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to publish sms: %w", err)
	}

	return nil
}
