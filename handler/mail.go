package handler

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/jinzhu/copier"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/internal/util"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/mailer"
)

//go:embed templates/plan_email.html
var planEmailTemplate string

var planEmail = template.Must(util.ParseHTML("plan_email", planEmailTemplate))

// MailOptions configure a Mail handler.
type MailOptions struct {
	// From is the sender address of outgoing mail.
	From string

	// Archive keeps the rendered plan under artifact.PlanHTML. Nil disables
	// archiving.
	Archive artifact.Store

	Logger logging.Logger
}

// Mail renders a travel plan with its place search results as HTML and
// sends it to the captured address.
type Mail struct {
	sender mailer.Sender
	opts   MailOptions
}

// NewMail creates a Mail handler.
func NewMail(sender mailer.Sender, optFns ...func(o *MailOptions)) *Mail {
	opts := MailOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Mail{sender: sender, opts: opts}
}

// Name implements core.Handler.
func (m *Mail) Name() string { return core.HandlerMail }

// Validate implements core.Handler.
func (m *Mail) Validate(req core.Request) bool { return len(m.MissingFields(req)) == 0 }

// MissingFields implements core.FieldRequirer.
func (m *Mail) MissingFields(req core.Request) []string {
	var missing []string
	if !mailer.IsAddress(req.Email) {
		missing = append(missing, "email")
	}
	if req.Plan == nil {
		missing = append(missing, "plan")
	}
	return missing
}

type placeView struct {
	Name        string
	Description string
	Address     string
	Telephone   string
	Link        string
}

type mailView struct {
	Destination string
	Duration    string
	core.TravelPlan
	Places []placeView
}

// Process implements core.Handler.
func (m *Mail) Process(ctx context.Context, req core.Request) core.Result {
	if !m.Validate(req) {
		return core.Failure("Invalid mail requirements", "필수 요구사항(email, plan, search_results)이 누락되었습니다.")
	}

	destination := firstNonEmpty(req.Context.String("destination"), req.Plan.Destination)

	view := mailView{
		Destination: destination,
		Duration:    firstNonEmpty(req.Context.String("duration"), req.Plan.Duration),
		TravelPlan:  *req.Plan,
	}
	if places := req.Search.Places(); len(places) > 0 {
		if err := copier.Copy(&view.Places, places); err != nil {
			return mailFailure(err)
		}
	}

	body, err := util.RenderHTML(planEmail, view)
	if err != nil {
		return mailFailure(err)
	}

	m.archive(ctx, req.SessionKey, body)

	msg := mailer.Message{
		From:    m.opts.From,
		To:      req.Email,
		Subject: fmt.Sprintf("[여행 계획] %s 여행 계획", destination),
		HTML:    body,
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return mailFailure(err)
	}

	m.opts.Logger.Info("travel plan mailed", "session_key", req.SessionKey, "places", len(view.Places))

	return core.Result{
		Status:  core.StatusSuccess,
		Message: "여행 계획이 이메일로 전송되었습니다.",
		Data:    map[string]any{"email": req.Email},
	}
}

func (m *Mail) archive(ctx context.Context, sessionKey, body string) {
	if m.opts.Archive == nil {
		return
	}

	err := m.opts.Archive.Save(ctx, sessionKey, artifact.Artifact{
		Name:        artifact.PlanHTML,
		ContentType: "text/html; charset=utf-8",
		Data:        []byte(body),
	})
	if err != nil {
		m.opts.Logger.Warn("archive rendered plan failed", "session_key", sessionKey, "error", err)
	}
}

func mailFailure(err error) core.Result {
	return core.FailureCause("Mail sending failed", err, "이메일 전송 중 오류가 발생했습니다.")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
