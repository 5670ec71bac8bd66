// Package session wires one open conversation together: the timeline,
// optimistic sends, presence, typing and the channel connector. All shared
// state is mutated on a single event-loop goroutine; commands and channel
// events are posted into it, so nothing here needs finer locking.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dany2315/BailNotarie-sub000/internal/api"
	"github.com/dany2315/BailNotarie-sub000/internal/apperr"
	"github.com/dany2315/BailNotarie-sub000/internal/channel"
	"github.com/dany2315/BailNotarie-sub000/internal/models"
	"github.com/dany2315/BailNotarie-sub000/internal/optimistic"
	"github.com/dany2315/BailNotarie-sub000/internal/presence"
	"github.com/dany2315/BailNotarie-sub000/internal/timeline"
	"github.com/dany2315/BailNotarie-sub000/internal/transport"
	"github.com/dany2315/BailNotarie-sub000/internal/typing"
	"github.com/dany2315/BailNotarie-sub000/internal/upload"
	"github.com/dany2315/BailNotarie-sub000/internal/visibility"
)

// DataService is the slice of the remote data service the session drives.
type DataService interface {
	FetchTimeline(ctx context.Context, conversationID string) (*api.TimelineSnapshot, error)
	SendMessage(ctx context.Context, conversationID, content string, attachments []models.Attachment, recipientPartyID string) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	AttachDocumentToRequest(ctx context.Context, requestID string, refs []models.Attachment) (*models.DocumentRequest, error)
	ResolveCounterpart(ctx context.Context, conversationID string) (*models.Counterpart, error)
}

// Uploader is the upload pipeline boundary.
type Uploader interface {
	Run(ctx context.Context, files []upload.File, onProgress func(percent float64)) ([]models.Attachment, error)
}

// Snapshot is the rendered view handed to the UI layer.
type Snapshot struct {
	Items             []models.TimelineItem
	CounterpartOnline bool
	CounterpartTyping bool
}

type Options struct {
	ConversationID string
	UserID         string
	Role           models.Role
	TypingQuiet    time.Duration
	TypingDecay    time.Duration
	RetryDelay     time.Duration
	// OnChange runs on the event loop after every visible mutation; it
	// must not call back into the session synchronously.
	OnChange func(Snapshot)
}

type Session struct {
	opts    Options
	svc     DataService
	uploads Uploader
	log     *zap.SugaredLogger

	loop      chan func()
	done      chan struct{}
	closeOnce sync.Once

	// loop-owned state
	viewer      models.Viewer
	counterpart models.Counterpart
	tracker     *optimistic.Tracker
	merger      *timeline.Merger
	presence    *presence.Tracker
	typing      *typing.Coordinator
	connector   *channel.Connector
}

// Open loads the authoritative timeline, resolves the counterpart and
// starts the channel connector. The returned session owns its connector
// exclusively; opening another conversation means opening another session.
func Open(ctx context.Context, opts Options, svc DataService, tr transport.Transport, uploads Uploader, log *zap.SugaredLogger) (*Session, error) {
	if opts.TypingQuiet == 0 {
		opts.TypingQuiet = 3 * time.Second
	}
	if opts.TypingDecay == 0 {
		opts.TypingDecay = 3 * time.Second
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 3 * time.Second
	}

	snap, err := svc.FetchTimeline(ctx, opts.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("open conversation %s: %w", opts.ConversationID, err)
	}
	counterpart, err := svc.ResolveCounterpart(ctx, opts.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("resolve counterpart: %w", err)
	}

	s := &Session{
		opts:        opts,
		svc:         svc,
		uploads:     uploads,
		log:         log,
		loop:        make(chan func(), 128),
		done:        make(chan struct{}),
		viewer:      models.Viewer{UserID: opts.UserID, PartyID: snap.CurrentUserPartyID, Role: opts.Role},
		counterpart: *counterpart,
		tracker:     optimistic.NewTracker(),
	}
	s.merger = timeline.NewMerger(s.tracker)
	s.presence = presence.NewTracker(counterpart.ID)
	s.connector = channel.NewConnector(opts.ConversationID, opts.UserID, tr, opts.RetryDelay, log)
	s.typing = typing.NewCoordinator(opts.TypingQuiet, opts.TypingDecay, s.emitTyping, log)

	go s.run()
	s.post(func() { s.mergeSnapshot(snap) })

	s.connector.Start(ctx, channel.Handlers{
		OnAuthorized: func(members []string) {
			s.post(func() {
				s.presence.Reset(members)
				s.notify()
			})
			go s.reload()
		},
		OnEvent: func(ev transport.Event) {
			s.post(func() { s.dispatch(ev) })
		},
	})
	return s, nil
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.loop:
			fn()
		case <-s.done:
			return
		}
	}
}

// post schedules fn on the event loop. After Close it reports false and
// the work is discarded, which is exactly what late upload or send
// completions want.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.loop <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) postWait(fn func()) bool {
	ran := make(chan struct{})
	if !s.post(func() { fn(); close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-s.done:
		return false
	}
}

// dispatch runs on the loop and matches the event union exhaustively. The
// viewer is read from loop-owned state at dispatch time, never captured.
func (s *Session) dispatch(ev transport.Event) {
	switch ev := ev.(type) {
	case transport.MemberJoined:
		s.presence.OnJoin(ev.ID)
		s.notify()
	case transport.MemberLeft:
		s.presence.OnLeave(ev.ID)
		s.notify()
	case transport.Typing:
		if ev.UserID != s.viewer.UserID && ev.UserID == s.counterpart.ID {
			s.typing.OnRemoteSignal(ev.IsTyping)
			s.notify()
		}
	case transport.NewMessage:
		if visibility.MessageVisible(s.viewer, &ev.Message) {
			s.merger.Merge([]models.Message{ev.Message}, nil)
			s.notify()
		}
	case transport.MessageDeleted:
		if s.merger.RemoveMessage(ev.MessageID) {
			s.notify()
		}
	case transport.NewRequest:
		if visibility.RequestVisible(s.viewer, &ev.Request) {
			s.merger.Merge(nil, []models.DocumentRequest{ev.Request})
			s.notify()
		}
	case transport.RequestUpdated:
		if ev.Request == nil {
			go s.reload()
			return
		}
		if visibility.RequestVisible(s.viewer, ev.Request) {
			s.merger.UpsertRequest(ev.Request)
			s.notify()
		}
	case transport.SubscriptionError:
		// handled inside the connector's retry path
	}
}

// mergeSnapshot folds an authoritative load into the view, adopting the
// resolved party id before filtering.
func (s *Session) mergeSnapshot(snap *api.TimelineSnapshot) {
	if snap.CurrentUserPartyID != "" {
		s.viewer.PartyID = snap.CurrentUserPartyID
	}
	msgs := make([]models.Message, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		if visibility.MessageVisible(s.viewer, &m) {
			msgs = append(msgs, m)
		}
	}
	reqs := make([]models.DocumentRequest, 0, len(snap.Requests))
	for _, r := range snap.Requests {
		if visibility.RequestVisible(s.viewer, &r) {
			reqs = append(reqs, r)
		}
	}
	s.merger.Merge(msgs, reqs)
	s.notify()
}

// reload pulls a fresh authoritative snapshot and rebuilds the view from
// it, carrying only still-pending optimistic items across. This is the
// moment any item over-accepted during the party-id race gets corrected.
func (s *Session) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	snap, err := s.svc.FetchTimeline(ctx, s.opts.ConversationID)
	if err != nil {
		s.log.Warnw("timeline reload failed", "conversation", s.opts.ConversationID, "err", err)
		return
	}
	s.post(func() {
		pending := make([]models.TimelineItem, 0, 2)
		for _, it := range s.merger.Items() {
			if it.Kind == models.KindMessage && it.Message.ID.IsProvisional() {
				pending = append(pending, it)
			}
		}
		s.merger = timeline.NewMerger(s.tracker)
		for _, it := range pending {
			s.merger.InsertOptimistic(it.Message)
		}
		s.mergeSnapshot(snap)
	})
}

// SendMessage renders the message optimistically before any network work,
// then runs uploads and the creation RPC. Any failure rolls the optimistic
// entry back entirely; a completion landing after Close is discarded.
func (s *Session) SendMessage(ctx context.Context, content, recipientPartyID string, files []upload.File, onProgress func(percent float64)) error {
	if content == "" && len(files) == 0 {
		return fmt.Errorf("%w: empty message", apperr.ErrValidation)
	}

	tempID := s.tracker.Begin()
	provisional := &models.Message{
		ID:               models.Provisional(tempID),
		ConversationID:   s.opts.ConversationID,
		SenderID:         s.opts.UserID,
		SenderRole:       s.opts.Role,
		Content:          content,
		RecipientPartyID: recipientPartyID,
		CreatedAt:        time.Now().UTC(),
	}
	if len(files) > 0 {
		provisional.Attachment = &models.Attachment{
			Label:    files[0].Name,
			MimeType: files[0].ContentType,
			Size:     int64(len(files[0].Data)),
		}
	}
	if !s.postWait(func() {
		s.merger.InsertOptimistic(provisional)
		s.typing.OnMessageSent()
		s.notify()
	}) {
		return errors.New("session closed")
	}

	var attachments []models.Attachment
	if len(files) > 0 {
		var err error
		attachments, err = s.uploads.Run(ctx, files, onProgress)
		if err != nil {
			s.rollback(tempID)
			return err
		}
	}

	confirmed, err := s.svc.SendMessage(ctx, s.opts.ConversationID, content, attachments, recipientPartyID)
	if err != nil {
		s.rollback(tempID)
		return err
	}

	s.post(func() {
		if !s.tracker.Confirm(tempID, confirmed.ID.String()) {
			// already reconciled or rolled back; the merge below dedupes
			s.merger.Merge([]models.Message{*confirmed}, nil)
			s.notify()
			return
		}
		s.merger.Confirm(tempID, confirmed)
		s.tracker.Retire(tempID)
		s.notify()
	})
	return nil
}

// rollback removes a failed send without leaving a trace; distinct from a
// delete, which is explicit and synced.
func (s *Session) rollback(tempID string) {
	s.post(func() {
		s.merger.RemoveMessage(tempID)
		s.tracker.Fail(tempID)
		s.notify()
	})
}

// DeleteMessage removes the message at the data service, then locally
// without waiting for the channel echo.
func (s *Session) DeleteMessage(ctx context.Context, messageID string) error {
	if err := s.svc.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	s.post(func() {
		if s.merger.RemoveMessage(messageID) {
			s.notify()
		}
	})
	return nil
}

// RespondToRequest uploads fulfillment files and appends them to the
// request. Requests mutate in place, so no optimistic entry is involved;
// the batch is still all-or-nothing.
func (s *Session) RespondToRequest(ctx context.Context, requestID string, files []upload.File, onProgress func(percent float64)) error {
	attachments, err := s.uploads.Run(ctx, files, onProgress)
	if err != nil {
		return err
	}
	updated, err := s.svc.AttachDocumentToRequest(ctx, requestID, attachments)
	if err != nil {
		return err
	}
	s.post(func() {
		s.merger.UpsertRequest(updated)
		s.notify()
	})
	return nil
}

// Keystroke feeds the local typing debounce.
func (s *Session) Keystroke() { s.typing.OnLocalKeystroke() }

func (s *Session) emitTyping(isTyping bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.connector.SendTyping(ctx, isTyping); err != nil {
			s.log.Debugw("typing publish failed", "err", err)
		}
	}()
}

// Snapshot returns the current rendered view. After Close it returns the
// zero snapshot.
func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	s.postWait(func() { snap = s.snapshotLocked() })
	return snap
}

// snapshotLocked runs on the loop.
func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Items:             s.merger.Items(),
		CounterpartOnline: s.presence.Online(),
		CounterpartTyping: s.typing.RemoteTyping(),
	}
}

func (s *Session) notify() {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.snapshotLocked())
	}
}

// Close tears down the channel bindings and stops the loop. In-flight
// uploads and sends are not aborted; their completions find the loop gone
// and are discarded silently.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.connector.Close(ctx)
		s.typing.Stop()
		close(s.done)
	})
	return err
}
