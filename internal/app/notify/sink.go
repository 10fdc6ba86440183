// Package notify renders expense notifications and delivers them through one
// or more sinks (mail, relay, chat, log).
package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"

	log "github.com/Ptt-Alertor/logrus"
)

// Message is a rendered notification. To may be empty for sinks that have a
// fixed destination, such as a chat. A Private message is meant for its
// recipients only and is never handed to a fixed-destination sink.
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
	Private bool     `json:"private,omitempty"`
}

// ErrNoRecipientSink means a private message had no sink delivering to To.
var ErrNoRecipientSink = errors.New("no sink delivers to the message recipients")

type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Addressed is implemented by sinks that deliver to Message.To.
type Addressed interface {
	Addressed() bool
}

func accepts(s Sink, msg Message) bool {
	if !msg.Private {
		return true
	}
	a, ok := s.(Addressed)
	return ok && a.Addressed()
}

// LogSink only logs; it is used when no delivery channel is configured.
type LogSink struct{}

func (LogSink) Name() string    { return "log" }
func (LogSink) Addressed() bool { return true }

func (LogSink) Send(_ context.Context, msg Message) error {
	log.WithFields(log.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("Notification (no delivery channel configured)")
	return nil
}

// MultiSink fans a message out to every sink. One sink failing does not stop
// the others; the joined error reports all failures.
type MultiSink []Sink

func (m MultiSink) Name() string { return "multi" }

func (m MultiSink) Send(ctx context.Context, msg Message) error {
	_, err := Deliver(ctx, m, msg, nil)
	return err
}

// Deliver sends msg through s, or through each member when s is a MultiSink,
// skipping sinks named in done and sinks that may not receive msg. It returns
// the names of the sinks that delivered during this call.
func Deliver(ctx context.Context, s Sink, msg Message, done []string) ([]string, error) {
	members, ok := s.(MultiSink)
	if !ok {
		members = MultiSink{s}
	}
	var (
		delivered []string
		errs      []error
		eligible  int
	)
	for _, member := range members {
		if !accepts(member, msg) {
			continue
		}
		eligible++
		if slices.Contains(done, member.Name()) {
			continue
		}
		if err := member.Send(ctx, msg); err != nil {
			log.WithFields(log.Fields{
				"sink":    member.Name(),
				"subject": msg.Subject,
			}).WithError(err).Error("Notification sink failed")
			errs = append(errs, fmt.Errorf("%s: %w", member.Name(), err))
			continue
		}
		delivered = append(delivered, member.Name())
	}
	if msg.Private && eligible == 0 {
		return nil, ErrNoRecipientSink
	}
	return delivered, errors.Join(errs...)
}

// Combine returns the single usable sink for sinks, falling back to LogSink.
func Combine(sinks ...Sink) Sink {
	var live MultiSink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return LogSink{}
	case 1:
		return live[0]
	}
	return live
}
