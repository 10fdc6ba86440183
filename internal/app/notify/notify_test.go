package notify

import (
	"context"
	"errors"
	"net/http"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"

	"reimburse/internal/domain/model"
)

type recordingSink struct {
	name string
	err  error
	got  []Message
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Send(_ context.Context, msg Message) error {
	r.got = append(r.got, msg)
	return r.err
}

// mailbox is a recording sink that delivers to Message.To.
type mailbox struct{ *recordingSink }

func (mailbox) Addressed() bool { return true }

func sampleRequest() *model.ExpenseRequest {
	return &model.ExpenseRequest{
		ID:         "req-1",
		RequestID:  "share-1",
		EmployeeID: "emp-1",
		Employee:   &model.AccountSummary{ID: "emp-1", FullName: "Dana <Levi>", Email: "dana@example.org"},
		Amount:     decimal.RequireFromString("99.9"),
		Currency:   model.CurrencyUSD,
		Reason:     "conference",
		Attachments: []model.AttachmentRef{
			{Path: "uploads/1-1-a.pdf", OriginalName: "a.pdf", SizeBytes: 10},
			{Path: "uploads/1-2-b.pdf", OriginalName: "b.pdf", SizeBytes: 20},
		},
		Status:    model.StatusPending,
		CreatedAt: time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
	}
}

func TestRenderRequestCreated(t *testing.T) {
	msg, err := RenderRequestCreated(sampleRequest(), []string{"finance@example.org"}, "https://files.example.org/")
	require.NoError(t, err)

	assert.Equal(t, "New Expense Request req-1", msg.Subject)
	assert.Equal(t, []string{"finance@example.org"}, msg.To)
	assert.Contains(t, msg.Text, "Employee: Dana <Levi> (dana@example.org)")
	assert.Contains(t, msg.Text, "Amount: 99.90 USD")
	assert.Contains(t, msg.Text, "Created At: 2026-05-04 10:30 UTC")
	assert.Contains(t, msg.Text, "a.pdf: https://files.example.org/uploads/1-1-a.pdf")
	assert.Less(t, strings.Index(msg.Text, "a.pdf"), strings.Index(msg.Text, "b.pdf"))

	assert.Contains(t, msg.HTML, `href="https://files.example.org/uploads/1-2-b.pdf"`)
	assert.Contains(t, msg.HTML, "Dana &lt;Levi&gt;", "html body must be escaped")
}

func TestRenderRequestCreatedWithoutBaseURL(t *testing.T) {
	req := sampleRequest()
	req.Employee = nil
	msg, err := RenderRequestCreated(req, nil, "")
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "a.pdf: uploads/1-1-a.pdf")
	assert.NotContains(t, msg.HTML, "href=")
}

func TestRenderPasswordResetAndDigest(t *testing.T) {
	msg := RenderPasswordReset("dana@example.org", "http://app/reset-password/tok", 15*time.Minute)
	assert.Equal(t, []string{"dana@example.org"}, msg.To)
	assert.Contains(t, msg.Text, "http://app/reset-password/tok")
	assert.Contains(t, msg.Text, "15 minutes")
	assert.Empty(t, msg.HTML)
	assert.True(t, msg.Private, "reset links go to the recipient only")

	digest, err := RenderPendingDigest([]model.ExpenseRequest{*sampleRequest()}, []string{"boss@example.org"}, time.Date(2026, 5, 5, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "Pending expense requests (1)", digest.Subject)
	assert.Contains(t, digest.Text, "req-1")
	assert.Contains(t, digest.HTML, "<td>2026-05-04</td>")
}

func TestMultiSinkIsolatesFailures(t *testing.T) {
	bad := &recordingSink{name: "bad", err: errors.New("down")}
	good := &recordingSink{name: "good"}

	err := MultiSink{bad, good}.Send(context.Background(), Message{Subject: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.got, 1, "later sinks still receive the message")
}

func TestDeliverKeepsPrivateMessagesOffFixedDestinations(t *testing.T) {
	mail := mailbox{&recordingSink{name: "smtp"}}
	chat := &recordingSink{name: "chat"}
	msg := RenderPasswordReset("dana@example.org", "http://app/reset-password/tok", time.Minute)

	delivered, err := Deliver(context.Background(), MultiSink{mail, chat}, msg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"smtp"}, delivered)
	assert.Len(t, mail.got, 1)
	assert.Empty(t, chat.got)

	_, err = Deliver(context.Background(), chat, msg, nil)
	assert.ErrorIs(t, err, ErrNoRecipientSink)
	assert.Empty(t, chat.got)

	delivered, err = Deliver(context.Background(), MultiSink{mail, chat}, Message{Subject: "digest"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"smtp", "chat"}, delivered)
}

func TestDeliverSkipsSinksAlreadyDone(t *testing.T) {
	mail := mailbox{&recordingSink{name: "smtp"}}
	relay := mailbox{&recordingSink{name: "relay", err: errors.New("down")}}

	delivered, err := Deliver(context.Background(), MultiSink{mail, relay}, Message{Subject: "s"}, nil)
	assert.ErrorContains(t, err, "relay: down")
	assert.Equal(t, []string{"smtp"}, delivered)

	relay.err = nil
	delivered, err = Deliver(context.Background(), MultiSink{mail, relay}, Message{Subject: "s"}, []string{"smtp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"relay"}, delivered)
	assert.Len(t, mail.got, 1, "smtp is not sent to twice")
	assert.Len(t, relay.got, 2)
}

func TestCombine(t *testing.T) {
	assert.IsType(t, LogSink{}, Combine())
	one := &recordingSink{name: "one"}
	assert.Same(t, one, Combine(nil, one))
	assert.IsType(t, MultiSink{}, Combine(one, &recordingSink{name: "two"}))
}

func TestSMTPSinkComposesMultipart(t *testing.T) {
	sink, err := NewSMTPSink(SMTPOptions{Host: "mail.example.org", Port: 587, Username: "u", Password: "p", From: "Expense App <no-reply@example.org>"})
	require.NoError(t, err)
	sink.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }

	var (
		gotAddr, gotFrom string
		gotTo            []string
		gotBody          []byte
	)
	sink.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		return nil
	}

	err = sink.Send(context.Background(), Message{
		To: []string{"a@example.org", "b@example.org"}, Subject: "Hello", Text: "plain body", HTML: "<p>html body</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, "mail.example.org:587", gotAddr)
	assert.Equal(t, "no-reply@example.org", gotFrom)
	assert.Equal(t, []string{"a@example.org", "b@example.org"}, gotTo)
	body := string(gotBody)
	assert.Contains(t, body, "To: a@example.org, b@example.org\r\n")
	assert.Contains(t, body, "Content-Type: multipart/alternative;")
	assert.Contains(t, body, "text/plain; charset=utf-8")
	assert.Contains(t, body, "text/html; charset=utf-8")
	assert.Contains(t, body, "plain body")
}

func TestSMTPSinkErrors(t *testing.T) {
	_, err := NewSMTPSink(SMTPOptions{From: "x@example.org"})
	assert.Error(t, err)

	sink, err := NewSMTPSink(SMTPOptions{Host: "h", Port: 25, From: "x@example.org"})
	require.NoError(t, err)
	assert.Error(t, sink.Send(context.Background(), Message{Subject: "no recipients"}))

	sink.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	err = sink.Send(context.Background(), Message{To: []string{"a@example.org"}})
	assert.ErrorContains(t, err, "refused")
}

func TestRelaySink(t *testing.T) {
	defer gock.Off()

	gock.New("https://relay.example.org").
		Post("/send").
		MatchHeader("Content-Type", "application/json").
		JSON(map[string]any{
			"from": "no-reply@example.org", "to": []string{"a@example.org"},
			"subject": "Hi", "text": "body",
		}).
		Reply(202)
	gock.New("https://relay.example.org").
		Post("/send").
		Reply(500).
		BodyString("boom")

	sink := NewRelaySink("https://relay.example.org/send", "no-reply@example.org", &http.Client{})

	require.NoError(t, sink.Send(context.Background(), Message{To: []string{"a@example.org"}, Subject: "Hi", Text: "body"}))
	err := sink.Send(context.Background(), Message{To: []string{"a@example.org"}, Subject: "Again", Text: "body"})
	assert.ErrorContains(t, err, "status 500")
	assert.True(t, gock.IsDone())
}

func TestTelegramSink(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.telegram.org").
		Post("/bottest-token/getMe").
		Reply(200).
		JSON(map[string]any{"ok": true, "result": map[string]any{"id": 1, "is_bot": true, "first_name": "Expense", "username": "expense_bot"}})
	gock.New("https://api.telegram.org").
		Post("/bottest-token/sendMessage").
		Reply(200).
		JSON(map[string]any{"ok": true, "result": map[string]any{"message_id": 7, "date": 0, "chat": map[string]any{"id": 42, "type": "group"}}})

	sink, err := NewTelegramSink("test-token", 42, &http.Client{})
	require.NoError(t, err)
	require.NoError(t, sink.Send(context.Background(), Message{Subject: "New Expense Request req-1", Text: "details"}))
	assert.True(t, gock.IsDone())

	err = sink.Send(context.Background(), Message{Subject: "Password Reset", Text: "secret", Private: true})
	assert.ErrorIs(t, err, ErrNoRecipientSink)
}

func TestTelegramSinkUnauthorized(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.telegram.org").
		Post("/botbad-token/getMe").
		Reply(401).
		JSON(map[string]any{"ok": false, "error_code": 401, "description": "Unauthorized"})

	_, err := NewTelegramSink("bad-token", 42, &http.Client{})
	assert.Error(t, err)
}
