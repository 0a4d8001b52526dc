package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/fiapx/fiapx-video-datasets/internal/domain/port"
	"go.uber.org/zap"
)

type SMTPNotifier struct {
	addr   string
	from   string
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		addr:   fmt.Sprintf("%s:%d", host, port),
		from:   from,
		send:   smtp.SendMail,
		logger: logger,
	}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, notice port.FailureNotice) error {
	msg := buildMessage(n.from, notice)
	if err := n.send(n.addr, nil, n.from, []string{notice.UserEmail}, msg); err != nil {
		n.logger.Error("failed to send clip export failure email",
			zap.String("to", notice.UserEmail),
			zap.String("job_id", notice.JobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("clip export failure email sent",
		zap.String("to", notice.UserEmail),
		zap.String("job_id", notice.JobID),
	)
	return nil
}

func buildMessage(from string, notice port.FailureNotice) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", notice.UserEmail)
	fmt.Fprintf(&b, "Subject: FIAP X - Clip export failed [Job %s]\r\n\r\n", notice.JobID)
	b.WriteString("Hello,\r\n\r\n")
	fmt.Fprintf(&b, "We could not export a training clip from your video after %d attempt(s).\r\n\r\n", notice.Attempts)
	fmt.Fprintf(&b, "Job ID: %s\r\nVideo: %s\r\nError: %s\r\n\r\n", notice.JobID, notice.VideoKey, notice.Reason)
	b.WriteString("Check that the file is a readable video and request the export again.\r\n\r\n")
	b.WriteString("-- FIAP X Video Datasets")
	return []byte(b.String())
}
