// Package notify renders and sends the engine's transactional emails. Each
// template is a named subject/body pair filled from the job payload's vars;
// unknown template names fail the job so typos surface in the queue instead
// of vanishing.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/learnsphere/learnsphere-backend/internal/platform/apperr"
	"github.com/learnsphere/learnsphere-backend/internal/platform/logger"
	"github.com/learnsphere/learnsphere-backend/internal/platform/sendgrid"
)

type Notifier interface {
	Send(ctx context.Context, template string, to []string, vars map[string]string) error
}

type template struct {
	subject string
	body    string
}

// Placeholders use {{name}} and are replaced from vars verbatim.
var templates = map[string]template{
	"course_complete": {
		subject: "You completed {{artifact_name}}",
		body:    "Hi {{user_name}},\n\nCongratulations on completing {{artifact_name}}. Your progress and any earned badges are on your dashboard.\n",
	},
	"learning_path_complete": {
		subject: "Learning path finished: {{artifact_name}}",
		body:    "Hi {{user_name}},\n\nYou have finished every course in {{artifact_name}}. Well done.\n",
	},
	"advanced_learning_path_complete": {
		subject: "Advanced learning path finished: {{artifact_name}}",
		body:    "Hi {{user_name}},\n\nYou have finished {{artifact_name}}, including all of its learning paths.\n",
	},
	"skill_traveller_complete": {
		subject: "Skill traveller finished: {{artifact_name}}",
		body:    "Hi {{user_name}},\n\nYou have completed the {{artifact_name}} journey.\n",
	},
	"skill_ontology_complete": {
		subject: "Skill ontology complete: {{artifact_name}}",
		body:    "Hi {{user_name}},\n\nEvery tracked artifact in {{artifact_name}} is now complete.\n",
	},
	"certificate_earned": {
		subject: "Your certificate for {{artifact_name}}",
		body:    "Hi {{user_name}},\n\nYou earned the certificate for {{artifact_name}}. It is available from your profile.\n",
	},
	"submission_received": {
		subject: "New submission for {{artifact_name}}",
		body:    "A learner submitted attempt {{attempt}} for {{artifact_name}}. Please review it.\n",
	},
	"submission_reviewed": {
		subject: "Your submission was reviewed",
		body:    "Hi {{user_name}},\n\nYour submission was scored {{score}} ({{result}}).\n",
	},
	"enrollment_approved": {
		subject: "You are enrolled in {{artifact_name}}",
		body:    "Hi {{user_name}},\n\nYour enrollment in {{artifact_name}} has been approved. You can start learning from your dashboard.\n",
	},
	"enrollment_rejected": {
		subject: "Your enrollment request for {{artifact_name}}",
		body:    "Hi {{user_name}},\n\nYour enrollment request for {{artifact_name}} was declined. Reason: {{reason}}\n",
	},
	"enrollment_reminder": {
		subject: "Reminder: {{artifact_name}} ends {{end_date}}",
		body:    "Hi {{user_name}},\n\nYour {{artifact_type}} {{artifact_name}} ends on {{end_date}} and you are at {{artifact_progress}}. Continue at {{website_url}}.\n",
	},
}

type notifier struct {
	log  *logger.Logger
	mail sendgrid.Client
}

func New(log *logger.Logger, mail sendgrid.Client) Notifier {
	return &notifier{log: log.With("component", "Notifier"), mail: mail}
}

func (n *notifier) Send(ctx context.Context, name string, to []string, vars map[string]string) error {
	tpl, ok := templates[name]
	if !ok {
		return apperr.Newf(apperr.KindValidation, "unknown email template %q", name)
	}
	if len(to) == 0 {
		return apperr.Validation("email has no recipients")
	}

	recipients := make([]sendgrid.EmailAddress, 0, len(to))
	for _, addr := range to {
		recipients = append(recipients, sendgrid.EmailAddress{Email: addr})
	}
	res, err := n.mail.Send(ctx, sendgrid.SendEmailRequest{
		To:         recipients,
		Subject:    render(tpl.subject, vars),
		Text:       render(tpl.body, vars),
		Categories: []string{"learnsphere", name},
	})
	if err != nil {
		return fmt.Errorf("send %q email: %w", name, err)
	}
	n.log.Debug("email sent", "template", name, "message_id", res.MessageID)
	return nil
}

func render(s string, vars map[string]string) string {
	for k, v := range vars {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	return s
}
