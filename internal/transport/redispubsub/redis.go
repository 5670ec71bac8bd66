// Package redispubsub implements the conversation channel on Redis
// pub/sub, with a per-conversation member set so reconnecting clients can
// read an authoritative presence snapshot.
package redispubsub

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dany2315/BailNotarie-sub000/internal/transport"
)

type Transport struct {
	client *redis.Client
	prefix string
	log    *zap.SugaredLogger
}

func New(client *redis.Client, prefix string, log *zap.SugaredLogger) *Transport {
	return &Transport{client: client, prefix: prefix, log: log}
}

func (t *Transport) channelKey(convID string) string {
	return fmt.Sprintf("%s:conv:%s", t.prefix, convID)
}

func (t *Transport) membersKey(convID string) string {
	return fmt.Sprintf("%s:conv:%s:members", t.prefix, convID)
}

// Subscribe attaches to the conversation channel, registers the member in
// the member set and announces the join. The returned subscription pumps
// decoded events until Close.
func (t *Transport) Subscribe(ctx context.Context, conversationID, memberID string) (transport.Subscription, error) {
	ps := t.client.Subscribe(ctx, t.channelKey(conversationID))
	// force the SUBSCRIBE round-trip so a refused subscription surfaces here
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", conversationID, err)
	}

	if err := t.client.SAdd(ctx, t.membersKey(conversationID), memberID).Err(); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("register member: %w", err)
	}

	sub := &subscription{
		tr:       t,
		ps:       ps,
		convID:   conversationID,
		memberID: memberID,
		events:   make(chan transport.Event, 64),
		done:     make(chan struct{}),
	}
	go sub.pump()

	if err := t.publish(ctx, conversationID, transport.NameMemberJoined, transport.MemberJoined{ID: memberID}); err != nil {
		t.log.Warnw("join announce failed", "conversation", conversationID, "err", err)
	}
	return sub, nil
}

func (t *Transport) publish(ctx context.Context, convID, name string, payload any) error {
	raw, err := transport.Encode(name, payload)
	if err != nil {
		return err
	}
	return t.client.Publish(ctx, t.channelKey(convID), raw).Err()
}

type subscription struct {
	tr       *Transport
	ps       *redis.PubSub
	convID   string
	memberID string
	events   chan transport.Event
	done     chan struct{}
}

func (s *subscription) pump() {
	defer close(s.events)
	ch := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				select {
				case <-s.done:
				default:
					s.events <- transport.SubscriptionError{Err: fmt.Errorf("pubsub stream closed")}
				}
				return
			}
			ev, err := transport.Decode([]byte(msg.Payload))
			if err != nil {
				s.tr.log.Warnw("dropping undecodable event", "conversation", s.convID, "err", err)
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}

func (s *subscription) Events() <-chan transport.Event { return s.events }

func (s *subscription) Members(ctx context.Context) ([]string, error) {
	members, err := s.tr.client.SMembers(ctx, s.tr.membersKey(s.convID)).Result()
	if err != nil {
		return nil, fmt.Errorf("member snapshot: %w", err)
	}
	return members, nil
}

func (s *subscription) SendTyping(ctx context.Context, userID string, isTyping bool) error {
	return s.tr.publish(ctx, s.convID, transport.NameTyping, transport.Typing{UserID: userID, IsTyping: isTyping})
}

func (s *subscription) Close(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	if err := s.tr.client.SRem(ctx, s.tr.membersKey(s.convID), s.memberID).Err(); err != nil {
		s.tr.log.Warnw("member deregister failed", "conversation", s.convID, "err", err)
	}
	if err := s.tr.publish(ctx, s.convID, transport.NameMemberLeft, transport.MemberLeft{ID: s.memberID}); err != nil {
		s.tr.log.Warnw("leave announce failed", "conversation", s.convID, "err", err)
	}
	return s.ps.Close()
}
