package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"opboard/internal/domain"
	"opboard/internal/domain/entities"
	"opboard/internal/ports/output"
	"opboard/pkg/eventtime"
)

// DefaultDialogueTimeout bounds the wait for each reply.
const DefaultDialogueTimeout = 5 * time.Minute

// maxTimeAttempts is how many unparsable times a dialogue accepts before
// giving up.
const maxTimeAttempts = 3

const cancelToken = "cancel"

// Outcome is how a dialogue ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
	OutcomeTimedOut
	OutcomeAborted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeAborted:
		return "aborted"
	default:
		return "failed"
	}
}

// OutcomeOf classifies the error returned by a dialogue run.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, domain.ErrDialogueCancelled):
		return OutcomeCancelled
	case errors.Is(err, domain.ErrDialogueTimeout):
		return OutcomeTimedOut
	case errors.Is(err, domain.ErrDialogueAborted):
		return OutcomeAborted
	default:
		return OutcomeFailed
	}
}

// message is a translatable text: an i18n key and its template data.
type message struct {
	key  string
	data map[string]any
}

// dialogue is a finite-state conversation. Each state has one prompt and
// waits for exactly one reply.
type dialogue interface {
	// kind prefixes the dialogue's i18n keys.
	kind() string
	prompt() message
	// advance consumes a reply. It returns an optional notice to send
	// back, whether the dialogue is finished, and an error that ends it.
	advance(reply string) (notice message, done bool, err error)
}

// conversation is one direct-message channel with a single user.
type conversation struct {
	gateway    output.Gateway
	translator output.T
	locale     string
	userID     string
	timeout    time.Duration
}

func (c *conversation) say(ctx context.Context, m message) error {
	text := c.translator.T(c.locale, m.key, m.data)
	return c.gateway.SendDirectMessage(ctx, c.userID, text)
}

// run drives d until it finishes. Each state sends its prompt and waits
// for one reply; "cancel" at any prompt ends the dialogue with
// domain.ErrDialogueCancelled before d sees it.
func (c *conversation) run(ctx context.Context, d dialogue) error {
	for {
		if err := c.say(ctx, d.prompt()); err != nil {
			return fmt.Errorf("%s dialogue: prompt: %w", d.kind(), err)
		}
		reply, err := c.gateway.WaitForDirectMessage(ctx, c.userID, c.timeout)
		if err != nil {
			return fmt.Errorf("%s dialogue: %w", d.kind(), err)
		}
		reply = strings.TrimSpace(reply)
		if strings.EqualFold(reply, cancelToken) {
			return fmt.Errorf("%s dialogue: %w", d.kind(), domain.ErrDialogueCancelled)
		}

		notice, done, err := d.advance(reply)
		if notice.key != "" {
			if sayErr := c.say(ctx, notice); sayErr != nil && err == nil {
				err = fmt.Errorf("%s dialogue: notice: %w", d.kind(), sayErr)
			}
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// timeParser turns a typed answer into a UTC instant.
type timeParser func(raw string) (time.Time, error)

// timeInvalidNotice explains a rejected time answer.
func timeInvalidNotice(err error, raw string) message {
	key := "errors.datetime_unparsable"
	if code := domain.Code(err); code != "" {
		key = "errors." + code
	}
	return message{key: key, data: map[string]any{"Input": raw, "Hint": eventtime.Hint}}
}

type createState int

const (
	createAwaitTitle createState = iota
	createAwaitDescription
	createAwaitTime
)

// createDialogue collects title, description and time.
type createDialogue struct {
	parse    timeParser
	prefix   string
	state    createState
	attempts int

	title       string
	description string
	eventTime   time.Time
}

func newCreateDialogue(parse timeParser, prefix string) *createDialogue {
	return &createDialogue{parse: parse, prefix: prefix}
}

func (d *createDialogue) kind() string { return "create" }

func (d *createDialogue) prompt() message {
	switch d.state {
	case createAwaitTitle:
		return message{key: "create.title_prompt"}
	case createAwaitDescription:
		return message{key: "create.description_prompt"}
	default:
		if d.attempts > 0 {
			return message{key: "create.time_retry_prompt"}
		}
		return message{key: "create.time_prompt"}
	}
}

func (d *createDialogue) advance(reply string) (message, bool, error) {
	switch d.state {
	case createAwaitTitle:
		if reply == "" {
			return message{key: "dialogue.empty_reply"}, false, nil
		}
		d.title = reply
		d.state = createAwaitDescription
		return message{}, false, nil
	case createAwaitDescription:
		d.description = reply
		d.state = createAwaitTime
		return message{}, false, nil
	default:
		t, err := d.parse(reply)
		if err == nil {
			d.eventTime = t
			return message{}, true, nil
		}
		d.attempts++
		if d.attempts >= maxTimeAttempts {
			return message{key: "create.too_many_attempts", data: map[string]any{"Prefix": d.prefix}}, false,
				fmt.Errorf("create dialogue: %w: %w", domain.ErrDialogueAborted, err)
		}
		return timeInvalidNotice(err, reply), false, nil
	}
}

type editState int

const (
	editAwaitField editState = iota
	editAwaitValue
)

// editDialogue changes exactly one field of an event.
type editDialogue struct {
	event    *entities.Event
	parse    timeParser
	state    editState
	field    entities.EventField
	attempts int

	update entities.EventUpdate
}

func newEditDialogue(event *entities.Event, parse timeParser) *editDialogue {
	return &editDialogue{event: event, parse: parse}
}

func (d *editDialogue) kind() string { return "edit" }

func (d *editDialogue) prompt() message {
	if d.state == editAwaitField {
		return message{key: "edit.menu", data: map[string]any{"ID": d.event.ID, "Title": d.event.Title}}
	}
	if d.field == entities.FieldTime && d.attempts > 0 {
		return message{key: "edit.time_retry_prompt"}
	}
	return message{key: "edit." + string(d.field) + "_prompt"}
}

func (d *editDialogue) advance(reply string) (message, bool, error) {
	if d.state == editAwaitField {
		switch field := entities.EventField(strings.ToLower(reply)); field {
		case entities.FieldTitle, entities.FieldDescription, entities.FieldTime:
			d.field = field
			d.state = editAwaitValue
			return message{}, false, nil
		default:
			return message{key: "edit.unknown_option", data: map[string]any{"Choice": reply}}, false,
				fmt.Errorf("edit dialogue: option %q: %w", reply, domain.ErrDialogueAborted)
		}
	}

	switch d.field {
	case entities.FieldTitle:
		if reply == "" {
			return message{key: "dialogue.empty_reply"}, false, nil
		}
		d.update.Title = &reply
	case entities.FieldDescription:
		d.update.Description = &reply
	case entities.FieldTime:
		t, err := d.parse(reply)
		if err != nil {
			d.attempts++
			if d.attempts >= maxTimeAttempts {
				return message{key: "edit.too_many_attempts"}, false,
					fmt.Errorf("edit dialogue: %w: %w", domain.ErrDialogueAborted, err)
			}
			return timeInvalidNotice(err, reply), false, nil
		}
		d.update.EventTime = &t
	}
	return message{}, true, nil
}

// deleteDialogue asks for an explicit "yes". Any other answer cancels.
type deleteDialogue struct {
	event *entities.Event
}

func (d *deleteDialogue) kind() string { return "delete" }

func (d *deleteDialogue) prompt() message {
	return message{key: "delete.confirm", data: map[string]any{"ID": d.event.ID, "Title": d.event.Title}}
}

func (d *deleteDialogue) advance(reply string) (message, bool, error) {
	if strings.EqualFold(reply, "yes") {
		return message{}, true, nil
	}
	return message{}, false, fmt.Errorf("delete dialogue: %w", domain.ErrDialogueCancelled)
}
