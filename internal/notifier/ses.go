package notifier

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-xray-sdk-go/xray"
)

// SESAPI は EmailSender が使う SES v2 クライアントの操作です
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailSender はSESでテキストメールを送信します
type EmailSender struct {
	client SESAPI
	from   string
}

// NewEmailSender は新しいEmailSenderを作成します
func NewEmailSender(client SESAPI, from string) *EmailSender {
	return &EmailSender{client: client, from: from}
}

// Send は1通のメールを送信します
func (s *EmailSender) Send(ctx context.Context, to, subject, body string) error {
	ctx, seg := xray.BeginSubsegment(ctx, "EmailSender.Send")
	defer seg.Close(nil)

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
