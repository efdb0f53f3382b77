package notifier

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hitoshi/sentinelx/internal/model"
)

// alertMailTemplate はアラート通知メールのHTML本文テンプレート。
var alertMailTemplate = template.Must(template.New("alert").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
  <h2 style="color: #c0392b;">新しい情報漏洩が検出されました</h2>
  <p>監視対象のメールアドレス <strong>{{.MonitoredEmail}}</strong> が
  {{.BreachCount}}件の漏洩に含まれていることを確認しました。</p>
  <table border="0" cellpadding="6" style="border-collapse: collapse;">
    <tr style="background: #f5f5f5;">
      <th align="left">漏洩元</th>
      <th align="left">漏洩日</th>
      <th align="left">漏洩した情報</th>
    </tr>
    {{range .Breaches}}
    <tr>
      <td>{{.Name}}</td>
      <td>{{.BreachDate}}</td>
      <td>{{join .DataExposed ", "}}</td>
    </tr>
    {{end}}
  </table>
  <p>深刻度: <strong>{{.Severity}}</strong> / リスクスコア: <strong>{{.RiskScore}}</strong></p>
  <p>パスワードの変更と二段階認証の有効化を推奨します。</p>
</body>
</html>`))

// SMTPConfig はSMTP送信の設定パラメータ。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier はSMTP経由でアラート通知を送信するNotifier実装。
type SMTPNotifier struct {
	config SMTPConfig
	logger *slog.Logger
	// sendMail はテストで差し替え可能な送信関数。
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier はSMTPNotifierの新しいインスタンスを生成する。
func NewSMTPNotifier(config SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		config:   config,
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// SendBreachAlert は新規漏洩の検出をユーザーの通知先アドレスへ送信する。
func (n *SMTPNotifier) SendBreachAlert(ctx context.Context, to string, alert *model.Alert) error {
	if n.config.Host == "" || n.config.From == "" {
		return fmt.Errorf("SMTPが設定されていません")
	}

	body, err := renderAlertMail(alert)
	if err != nil {
		return fmt.Errorf("通知メール本文の生成に失敗しました: %w", err)
	}

	subject := fmt.Sprintf("【SentinelX】%s に新しい漏洩が検出されました", alert.MonitoredEmail)
	msg := buildMessage(n.config.From, to, subject, body)

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	if err := n.sendMail(addr, auth, n.config.From, []string{to}, msg); err != nil {
		return fmt.Errorf("通知メールの送信に失敗しました: %w", err)
	}

	n.logger.Info("通知メールを送信しました",
		slog.String("to", to),
		slog.String("monitored_email", alert.MonitoredEmail),
	)
	return nil
}

// renderAlertMail はアラートからHTML本文を生成する。
func renderAlertMail(alert *model.Alert) (string, error) {
	var buf bytes.Buffer
	if err := alertMailTemplate.Execute(&buf, alert); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// buildMessage はRFC 5322形式のメールメッセージを組み立てる。
func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// compile-time interface check
var _ Notifier = (*SMTPNotifier)(nil)
