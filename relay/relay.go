package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"

	"github.com/cmwaters/groupsync/pkg/group"
)

// TopicPrefix namespaces relay topics so they do not collide with other
// users of the same pubsub router.
const TopicPrefix = "groupsync/"

// Notifiee receives appends published by other peers. Any non-nil error
// rejects the message as invalid so it is not propagated further.
type Notifiee interface {
	OnMember(context.Context, group.Member) error
	OnFeedback(context.Context, string) error
}

// Relay shares optimistic appends between peers that follow the same group.
// Messages are only ever applied to local state; nothing is written to the
// registry.
type Relay struct {
	ps     *pubsub.PubSub
	self   peer.ID
	tp     *pubsub.Topic
	sub    *pubsub.Subscription
	logger zerolog.Logger
}

// Join subscribes to the relay topic of groupID and hands messages from
// other peers to n. self is the local peer id; messages it authored are
// accepted without being handed back.
func Join(ps *pubsub.PubSub, self peer.ID, groupID string, n Notifiee, logger zerolog.Logger) (*Relay, error) {
	if groupID == "" {
		return nil, errors.New("relay: empty group id")
	}
	topic, err := ps.Join(TopicPrefix + groupID)
	if err != nil {
		return nil, err
	}

	r := &Relay{
		ps:     ps,
		self:   self,
		tp:     topic,
		logger: logger.With().Str("topic", topic.String()).Logger(),
	}
	if err := r.ps.RegisterTopicValidator(topic.String(), r.validator(n)); err != nil {
		_ = topic.Close()
		return nil, err
	}
	if err := r.ensureSubscribed(); err != nil {
		_ = r.ps.UnregisterTopicValidator(topic.String())
		_ = topic.Close()
		return nil, err
	}
	return r, nil
}

func (r *Relay) PublishMember(ctx context.Context, m group.Member) error {
	return r.publish(ctx, &message{Type: memberType, Member: &m})
}

func (r *Relay) PublishFeedback(ctx context.Context, text string) error {
	return r.publish(ctx, &message{Type: feedbackType, Feedback: text})
}

func (r *Relay) publish(ctx context.Context, msg *message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	// so that we publish when we have at least one peer
	opt := pubsub.WithReadiness(pubsub.MinTopicSize(1))
	return r.tp.Publish(ctx, data, opt)
}

func (r *Relay) Close() (err error) {
	r.sub.Cancel()
	err = errors.Join(err, r.ps.UnregisterTopicValidator(r.tp.String()))
	err = errors.Join(err, r.tp.Close())
	return err
}

func (r *Relay) validator(n Notifiee) pubsub.ValidatorEx {
	return func(ctx context.Context, from peer.ID, pmsg *pubsub.Message) pubsub.ValidationResult {
		var msg message
		if err := json.Unmarshal(pmsg.Data, &msg); err != nil {
			r.logger.Debug().Err(err).Str("peer", from.String()).Msg("rejecting malformed message")
			return pubsub.ValidationReject
		}
		if err := msg.validate(); err != nil {
			r.logger.Debug().Err(err).Str("peer", from.String()).Msg("rejecting invalid message")
			return pubsub.ValidationReject
		}
		// our own appends are already applied
		if pmsg.GetFrom() == r.self {
			return pubsub.ValidationAccept
		}

		var err error
		switch msg.Type {
		case memberType:
			err = n.OnMember(ctx, *msg.Member)
		case feedbackType:
			err = n.OnFeedback(ctx, msg.Feedback)
		}
		if err != nil {
			r.logger.Debug().Err(err).Str("peer", from.String()).Msg("append rejected")
			return pubsub.ValidationReject
		}
		return pubsub.ValidationAccept
	}
}

// ensureSubscribed maintains one and only subscription for the topic.
// PubSub requires at least one subscription in order to work correctly.
// Delivery to the notifiee happens in the validator, so messages read from
// the subscription are discarded.
func (r *Relay) ensureSubscribed() error {
	sub, err := r.tp.Subscribe()
	if err != nil {
		return err
	}
	r.sub = sub

	go func() {
		for {
			if _, err := sub.Next(context.Background()); err != nil {
				// happens when subscription is canceled
				return
			}
		}
	}()
	return nil
}

type messageType uint8

const (
	memberType messageType = iota + 1
	feedbackType
)

type message struct {
	Type     messageType   `json:"type"`
	Member   *group.Member `json:"member,omitempty"`
	Feedback string        `json:"feedback,omitempty"`
}

func (m *message) validate() error {
	switch m.Type {
	case memberType:
		if m.Member == nil {
			return errors.New("member message without member")
		}
		return m.Member.Validate()
	case feedbackType:
		return nil
	default:
		return fmt.Errorf("unsupported message type %d", m.Type)
	}
}
