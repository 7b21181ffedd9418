// Package scheduler runs a conversation room: two AI sides take turns on a
// timer while a moderator may inject messages.
//
// Each room is owned by a single goroutine. Commands, timer ticks, retry
// timers and LLM results are all delivered to it over channels, so room
// state is never shared. At most one turn is in flight; a result is applied
// only when the room has not been paused, stopped or restarted since the
// turn was requested.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"conference/services/orchestrator/events"
	"conference/services/orchestrator/llm"
	"conference/services/orchestrator/logger"
	"conference/services/orchestrator/metrics"
	"conference/services/orchestrator/models"
	"conference/services/orchestrator/modes"
	"conference/services/orchestrator/prompt"
	"conference/services/orchestrator/session"
)

var (
	ErrNoConversation = errors.New("no conversation in progress")
	ErrAlreadyStarted = errors.New("conversation already in progress")
	ErrNotActive      = errors.New("conversation is not active")
	ErrEmptyTopic     = errors.New("topic is required")
	ErrEmptyMessage   = errors.New("message is required")
	ErrInvalidModel   = errors.New("unknown AI model")
	ErrInvalidSpeech  = errors.New("speech settings out of range")
	ErrInvalidTime    = errors.New("unknown time of day")
	ErrClosed         = errors.New("room is closed")
)

// ConnectionIssue is the notice published when a turn fails and is retried.
const ConnectionIssue = "Connection issue. Retrying..."

const (
	defaultManualRetryDelay = time.Second
	defaultTopicChangeDelay = time.Second
	defaultTurnTimeout      = 60 * time.Second
	defaultEmotionTimeout   = 30 * time.Second
)

// Analyzer classifies the sentiment of a produced message.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (models.Emotion, error)
}

// Config holds the per-room settings.
type Config struct {
	RoomID     string
	Mode       string
	TimeOfDay  string
	LeftModel  string
	RightModel string
	Audio      bool
	Speech     models.Speech

	Retry            RetryPolicy
	ManualRetryDelay time.Duration
	TopicChangeDelay time.Duration
	TurnTimeout      time.Duration
	EmotionTimeout   time.Duration
}

// Deps are the collaborators of a room. LLM and Store are required.
type Deps struct {
	LLM      llm.Client
	Store    session.Store
	Analyzer Analyzer
	Sink     events.Publisher
	Clock    Clock
	Log      *logger.Logger
	Metrics  *metrics.Metrics
}

type request struct {
	fn    func() error
	reply chan error
}

type turnResult struct {
	epoch    uint64
	speaker  models.Speaker
	model    string
	text     string
	err      error
	duration time.Duration
}

type emotionResult struct {
	convID  string
	speaker models.Speaker
	emotion models.Emotion
}

// Scheduler drives one conversation room.
type Scheduler struct {
	cfg      Config
	llm      llm.Client
	store    session.Store
	analyzer Analyzer
	clock    Clock
	log      *logger.Logger
	metrics  *metrics.Metrics
	broker   *events.Broker
	persist  *persister

	ctx    context.Context
	cancel context.CancelFunc

	reqs     chan request
	results  chan turnResult
	emotions chan emotionResult
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once

	// Everything below is owned by the loop goroutine.
	state     models.RoomState
	conv      *models.Conversation
	topic     string
	messages  []models.Message
	turns     int
	epoch     uint64
	inFlight  bool
	turnStop  context.CancelFunc
	failures  int
	lastErr   string
	mode      modes.Mode
	timeOfDay string
	audio     bool
	left      string
	right     string
	speech    models.Speech
	feelings  map[models.Speaker]models.Emotion

	ticker       Ticker
	tickC        <-chan time.Time
	retryTimer   Timer
	retryC       <-chan time.Time
	startTimer   Timer
	startC       <-chan time.Time
	pendingTopic string
}

// New validates cfg and starts the room loop.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.LLM == nil {
		return nil, errors.New("scheduler: LLM client is required")
	}
	if deps.Store == nil {
		return nil, errors.New("scheduler: conversation store is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = modes.Conference
	}
	mode, err := modes.Get(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if cfg.TimeOfDay == "" {
		cfg.TimeOfDay = modes.DefaultTimeOfDay
	}
	if !modes.ValidTimeOfDay(cfg.TimeOfDay) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTime, cfg.TimeOfDay)
	}
	if cfg.LeftModel == "" {
		cfg.LeftModel = models.DefaultAIModel
	}
	if cfg.RightModel == "" {
		cfg.RightModel = models.DefaultAIModel
	}
	if cfg.Speech == (models.Speech{}) {
		cfg.Speech = models.Speech{Rate: 1, Pitch: 1}
	}
	if cfg.Retry.Delay <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.ManualRetryDelay <= 0 {
		cfg.ManualRetryDelay = defaultManualRetryDelay
	}
	if cfg.TopicChangeDelay <= 0 {
		cfg.TopicChangeDelay = defaultTopicChangeDelay
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = defaultTurnTimeout
	}
	if cfg.EmotionTimeout <= 0 {
		cfg.EmotionTimeout = defaultEmotionTimeout
	}

	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(prometheus.NewRegistry())
	}
	log := deps.Log.Room(cfg.RoomID).Component("scheduler")

	var sinks []events.Publisher
	if deps.Sink != nil {
		sinks = append(sinks, deps.Sink)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:       cfg,
		llm:       deps.LLM,
		store:     deps.Store,
		analyzer:  deps.Analyzer,
		clock:     deps.Clock,
		log:       log,
		metrics:   deps.Metrics,
		broker:    events.NewBroker(log, sinks...),
		persist:   newPersister(deps.Store, log, deps.Metrics),
		ctx:       ctx,
		cancel:    cancel,
		reqs:      make(chan request),
		results:   make(chan turnResult, 1),
		emotions:  make(chan emotionResult, 4),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		state:     models.StateIdle,
		mode:      mode,
		timeOfDay: cfg.TimeOfDay,
		audio:     cfg.Audio,
		left:      cfg.LeftModel,
		right:     cfg.RightModel,
		speech:    cfg.Speech,
		feelings:  neutralFeelings(),
	}
	go s.loop()
	return s, nil
}

func neutralFeelings() map[models.Speaker]models.Emotion {
	return map[models.Speaker]models.Emotion{
		models.SpeakerLeft:  models.NeutralEmotion(),
		models.SpeakerRight: models.NeutralEmotion(),
	}
}

func (s *Scheduler) RoomID() string { return s.cfg.RoomID }

// Start creates a new conversation on topic and produces the opening turn
// immediately.
func (s *Scheduler) Start(ctx context.Context, topic string) error {
	return s.do(ctx, func() error { return s.start(ctx, topic) })
}

func (s *Scheduler) Pause(ctx context.Context) error {
	return s.do(ctx, s.pause)
}

// Resume restarts the timer. It does nothing when the turn cap is reached.
func (s *Scheduler) Resume(ctx context.Context) error {
	return s.do(ctx, s.resume)
}

// Stop completes the conversation and clears the room.
func (s *Scheduler) Stop(ctx context.Context) error {
	return s.do(ctx, s.stop)
}

// Inject appends a moderator message without consuming a turn.
func (s *Scheduler) Inject(ctx context.Context, text string) error {
	return s.do(ctx, func() error { return s.inject(text) })
}

// Retry attempts the next turn shortly, whether or not an error is showing.
func (s *Scheduler) Retry(ctx context.Context) error {
	return s.do(ctx, s.retry)
}

// ChangeTopic stops the current conversation and starts a new one on topic
// after a short delay.
func (s *Scheduler) ChangeTopic(ctx context.Context, topic string) error {
	return s.do(ctx, func() error { return s.changeTopic(topic) })
}

func (s *Scheduler) SetMode(ctx context.Context, name string) error {
	return s.do(ctx, func() error { return s.setMode(name) })
}

func (s *Scheduler) SetTimeOfDay(ctx context.Context, t string) error {
	return s.do(ctx, func() error { return s.setTimeOfDay(t) })
}

func (s *Scheduler) SetAudio(ctx context.Context, on bool) error {
	return s.do(ctx, func() error { return s.setAudio(on) })
}

// SetModels changes the model of either side. Empty names are left as is.
func (s *Scheduler) SetModels(ctx context.Context, left, right string) error {
	return s.do(ctx, func() error { return s.setModels(left, right) })
}

// SetSpeech changes playback settings. Zero values are left as is.
func (s *Scheduler) SetSpeech(ctx context.Context, rate, pitch float64) error {
	return s.do(ctx, func() error { return s.setSpeech(rate, pitch) })
}

func (s *Scheduler) Snapshot(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	err := s.do(ctx, func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// Subscribe returns a stream of room events and a func that ends it.
func (s *Scheduler) Subscribe() (<-chan models.Event, func()) {
	return s.broker.Subscribe(0)
}

// Close stops the loop, cancels in-flight work and flushes pending writes.
func (s *Scheduler) Close() error {
	s.once.Do(func() {
		close(s.quit)
		<-s.done
		s.cancel()
		s.broker.Close()
		s.persist.close()
	})
	return nil
}

func (s *Scheduler) do(ctx context.Context, fn func() error) error {
	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case s.reqs <- req:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrClosed
		}
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		select {
		case req := <-s.reqs:
			req.reply <- req.fn()
		case <-s.tickC:
			s.onTick()
		case <-s.retryC:
			s.onRetry()
		case <-s.startC:
			s.onDeferredStart()
		case res := <-s.results:
			s.onTurnResult(res)
		case res := <-s.emotions:
			s.onEmotion(res)
		case <-s.quit:
			s.halt()
			s.stopStartTimer()
			if s.state == models.StateActive {
				s.metrics.RoomsActive.Dec()
			}
			return
		}
	}
}

func (s *Scheduler) start(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ErrEmptyTopic
	}
	if s.conv != nil {
		return ErrAlreadyStarted
	}
	s.stopStartTimer()

	mode := models.ModeTextChat
	if s.audio {
		mode = models.ModeLiveAudio
	}
	conv := &models.Conversation{
		Title:      topic,
		LeftModel:  s.left,
		RightModel: s.right,
		Status:     models.StatusActive,
		Mode:       mode,
		Messages:   []models.Message{},
	}
	begin := time.Now()
	err := s.store.Create(ctx, conv)
	s.metrics.RecordStoreOperation("create", time.Since(begin), err)
	s.log.LogStoreOperation("create", conv.ID, time.Since(begin), err)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	s.conv = conv
	s.topic = topic
	s.messages = nil
	s.turns = 0
	s.failures = 0
	s.lastErr = ""
	s.feelings = neutralFeelings()
	s.epoch++
	s.setState(models.StateActive)
	s.startTicker()

	s.log.Info().Str("conversation_id", conv.ID).Str("topic", topic).Str("mode", s.mode.Name).Msg("Conversation started")
	s.dispatchTurn()
	return nil
}

func (s *Scheduler) pause() error {
	switch s.state {
	case models.StateIdle:
		return ErrNoConversation
	case models.StatePaused:
		return nil
	case models.StateFailed:
		return ErrNotActive
	}
	s.halt()
	s.setState(models.StatePaused)
	s.persist.enqueue(s.conv.ID, models.UpdateStatus(models.StatusPaused))
	return nil
}

func (s *Scheduler) resume() error {
	switch s.state {
	case models.StateIdle:
		return ErrNoConversation
	case models.StateActive:
		return nil
	}
	if s.atCap() {
		return nil
	}
	s.failures = 0
	s.setState(models.StateActive)
	s.clearError()
	s.startTicker()
	s.persist.enqueue(s.conv.ID, models.UpdateStatus(models.StatusActive))
	return nil
}

func (s *Scheduler) stop() error {
	s.stopStartTimer()
	if s.conv == nil {
		return nil
	}
	s.halt()
	s.persist.enqueue(s.conv.ID, models.UpdateStatus(models.StatusCompleted))
	s.log.Info().Str("conversation_id", s.conv.ID).Int("turns", s.turns).Msg("Conversation completed")

	s.conv = nil
	s.topic = ""
	s.messages = nil
	s.turns = 0
	s.failures = 0
	s.lastErr = ""
	s.feelings = neutralFeelings()
	s.setState(models.StateIdle)
	s.publish(models.Event{Type: models.EventCleared})
	return nil
}

func (s *Scheduler) inject(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if s.conv == nil {
		return ErrNoConversation
	}
	msg := models.Message{
		Speaker:   models.SpeakerModerator,
		Text:      text,
		Timestamp: s.clock.Now(),
		ModelUsed: models.ModeratorModel,
	}
	s.appendMessage(msg)
	s.metrics.ModeratorMsgs.Inc()
	return nil
}

func (s *Scheduler) retry() error {
	switch s.state {
	case models.StateIdle:
		return ErrNoConversation
	case models.StatePaused:
		return ErrNotActive
	case models.StateFailed:
		s.failures = 0
		s.setState(models.StateActive)
		s.startTicker()
		s.persist.enqueue(s.conv.ID, models.UpdateStatus(models.StatusActive))
	}
	s.clearError()
	s.scheduleRetry(s.cfg.ManualRetryDelay)
	return nil
}

func (s *Scheduler) changeTopic(topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ErrEmptyTopic
	}
	if err := s.stop(); err != nil {
		return err
	}
	s.pendingTopic = topic
	s.startTimer = s.clock.NewTimer(s.cfg.TopicChangeDelay)
	s.startC = s.startTimer.C()
	return nil
}

func (s *Scheduler) setMode(name string) error {
	m, err := modes.Get(name)
	if err != nil {
		return err
	}
	s.mode = m
	if s.ticker != nil {
		s.ticker.Reset(m.Interval)
	}
	s.log.Info().Str("mode", m.Name).Dur("interval", m.Interval).Msg("Mode changed")
	s.publishSnapshot()
	return nil
}

func (s *Scheduler) setTimeOfDay(t string) error {
	if !modes.ValidTimeOfDay(t) {
		return fmt.Errorf("%w: %q", ErrInvalidTime, t)
	}
	s.timeOfDay = t
	s.publishSnapshot()
	return nil
}

func (s *Scheduler) setAudio(on bool) error {
	s.audio = on
	if s.conv != nil {
		mode := models.ModeTextChat
		if on {
			mode = models.ModeLiveAudio
		}
		s.persist.enqueue(s.conv.ID, models.ConversationUpdate{Mode: &mode})
	}
	s.publishSnapshot()
	return nil
}

func (s *Scheduler) setModels(left, right string) error {
	for _, m := range []string{left, right} {
		if m != "" && !models.ValidAIModel(m) {
			return fmt.Errorf("%w: %q", ErrInvalidModel, m)
		}
	}
	var u models.ConversationUpdate
	if left != "" {
		s.left = left
		u.LeftModel = &left
	}
	if right != "" {
		s.right = right
		u.RightModel = &right
	}
	if s.conv != nil && (u.LeftModel != nil || u.RightModel != nil) {
		s.persist.enqueue(s.conv.ID, u)
	}
	s.publishSnapshot()
	return nil
}

func (s *Scheduler) setSpeech(rate, pitch float64) error {
	if rate < 0 || rate > 10 || pitch < 0 || pitch > 2 {
		return ErrInvalidSpeech
	}
	if rate > 0 {
		s.speech.Rate = rate
	}
	if pitch > 0 {
		s.speech.Pitch = pitch
	}
	s.publishSnapshot()
	return nil
}

func (s *Scheduler) onTick() {
	if s.retryC != nil {
		s.metrics.TurnsDropped.WithLabelValues("retry_pending").Inc()
		return
	}
	s.dispatchTurn()
}

func (s *Scheduler) onRetry() {
	s.retryTimer = nil
	s.retryC = nil
	s.metrics.RetriesTotal.Inc()
	s.dispatchTurn()
}

func (s *Scheduler) onDeferredStart() {
	topic := s.pendingTopic
	s.stopStartTimer()
	if err := s.start(s.ctx, topic); err != nil {
		s.log.Error().Err(err).Str("topic", topic).Msg("Failed to start conversation after topic change")
		s.lastErr = err.Error()
		s.publish(models.Event{Type: models.EventError, Error: s.lastErr})
	}
}

// dispatchTurn starts the next turn unless one is already running.
func (s *Scheduler) dispatchTurn() {
	if s.state != models.StateActive {
		return
	}
	if s.inFlight {
		s.metrics.TurnsDropped.WithLabelValues("in_flight").Inc()
		return
	}
	if s.atCap() {
		s.autoPause()
		return
	}

	speaker := s.nextSpeaker()
	var p string
	if s.turns == 0 {
		p = prompt.Opening(s.mode, s.timeOfDay, s.topic)
	} else {
		p = prompt.Continuation(s.mode, s.timeOfDay, s.topic, speaker, s.messages)
	}
	model := s.left
	if speaker == models.SpeakerRight {
		model = s.right
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.TurnTimeout)
	s.turnStop = cancel
	s.inFlight = true
	go s.runTurn(ctx, cancel, turnResult{epoch: s.epoch, speaker: speaker, model: model}, p)
}

func (s *Scheduler) runTurn(ctx context.Context, cancel context.CancelFunc, res turnResult, p string) {
	defer cancel()
	begin := time.Now()
	res.text, res.err = s.llm.Complete(ctx, p)
	res.duration = time.Since(begin)
	s.metrics.RecordLLMRequest("turn", res.duration, res.err)

	select {
	case s.results <- res:
	case <-s.done:
	}
}

func (s *Scheduler) onTurnResult(res turnResult) {
	if res.epoch != s.epoch || s.state != models.StateActive {
		s.metrics.TurnsDropped.WithLabelValues("stale").Inc()
		return
	}
	s.inFlight = false
	s.turnStop = nil
	s.metrics.RecordTurn(string(res.speaker), res.err)

	if res.err != nil {
		s.failures++
		s.log.Warn().Err(res.err).Str("speaker", string(res.speaker)).Int("failures", s.failures).Msg("Turn failed")
		if s.cfg.Retry.Exhausted(s.failures) {
			s.fail()
			return
		}
		s.lastErr = ConnectionIssue
		s.scheduleRetry(s.cfg.Retry.Backoff(s.failures))
		s.publish(models.Event{Type: models.EventError, Error: ConnectionIssue})
		return
	}

	s.failures = 0
	msg := models.Message{
		Speaker:   res.speaker,
		Text:      res.text,
		Timestamp: s.clock.Now(),
		ModelUsed: res.model,
	}
	s.turns++
	s.appendMessage(msg)
	s.clearError()
	s.log.Debug().Str("speaker", string(res.speaker)).Int("turn", s.turns).Dur("duration", res.duration).Msg("Turn produced")

	if s.audio {
		speech := s.speech
		s.publish(models.Event{Type: models.EventSpeak, Speaker: res.speaker, Text: res.text, Speech: &speech})
	}
	if s.analyzer != nil {
		go s.analyze(s.conv.ID, res.speaker, res.text)
	}
	if s.atCap() {
		s.autoPause()
	}
}

func (s *Scheduler) analyze(convID string, speaker models.Speaker, text string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.EmotionTimeout)
	defer cancel()

	begin := time.Now()
	e, err := s.analyzer.Analyze(ctx, text)
	s.metrics.RecordLLMRequest("emotion", time.Since(begin), err)
	s.metrics.RecordEmotion(err)
	if err != nil {
		s.log.Debug().Err(err).Str("speaker", string(speaker)).Msg("Emotion analysis failed")
		return
	}
	select {
	case s.emotions <- emotionResult{convID: convID, speaker: speaker, emotion: e}:
	case <-s.done:
	}
}

func (s *Scheduler) onEmotion(res emotionResult) {
	if s.conv == nil || s.conv.ID != res.convID {
		return
	}
	s.feelings[res.speaker] = res.emotion
	e := res.emotion
	s.publish(models.Event{Type: models.EventEmotion, Speaker: res.speaker, Emotion: &e})
}

func (s *Scheduler) appendMessage(msg models.Message) {
	s.messages = append(s.messages, msg)
	s.persist.enqueue(s.conv.ID, models.UpdateMessages(s.messages))
	s.publish(models.Event{Type: models.EventMessage, Message: &msg})
}

func (s *Scheduler) nextSpeaker() models.Speaker {
	if s.turns%2 == 0 {
		return models.SpeakerLeft
	}
	return models.SpeakerRight
}

func (s *Scheduler) atCap() bool {
	return s.turns >= s.mode.MaxMessages
}

func (s *Scheduler) autoPause() {
	s.log.Info().Int("turns", s.turns).Int("max", s.mode.MaxMessages).Msg("Turn cap reached, pausing")
	s.halt()
	s.setState(models.StatePaused)
	s.persist.enqueue(s.conv.ID, models.UpdateStatus(models.StatusPaused))
}

func (s *Scheduler) fail() {
	s.halt()
	s.lastErr = fmt.Sprintf("Conversation failed after %d attempts.", s.failures)
	s.log.Error().Int("failures", s.failures).Msg("Retry policy exhausted")
	s.setState(models.StateFailed)
	s.persist.enqueue(s.conv.ID, models.UpdateStatus(models.StatusFailed))
	s.publish(models.Event{Type: models.EventError, Error: s.lastErr})
}

// halt stops the timer and any pending retry and abandons the in-flight turn.
func (s *Scheduler) halt() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
		s.tickC = nil
	}
	s.cancelRetry()
	if s.turnStop != nil {
		s.turnStop()
		s.turnStop = nil
	}
	s.inFlight = false
	s.epoch++
}

func (s *Scheduler) startTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.ticker = s.clock.NewTicker(s.mode.Interval)
	s.tickC = s.ticker.C()
}

func (s *Scheduler) scheduleRetry(d time.Duration) {
	s.cancelRetry()
	s.retryTimer = s.clock.NewTimer(d)
	s.retryC = s.retryTimer.C()
}

func (s *Scheduler) cancelRetry() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
		s.retryC = nil
	}
}

func (s *Scheduler) stopStartTimer() {
	if s.startTimer != nil {
		s.startTimer.Stop()
		s.startTimer = nil
		s.startC = nil
	}
	s.pendingTopic = ""
}

func (s *Scheduler) setState(next models.RoomState) {
	if s.state == next {
		return
	}
	if next == models.StateActive {
		s.metrics.RoomsActive.Inc()
	} else if s.state == models.StateActive {
		s.metrics.RoomsActive.Dec()
	}
	s.state = next
	s.publish(models.Event{Type: models.EventState, State: next})
}

func (s *Scheduler) publish(ev models.Event) {
	ev.RoomID = s.cfg.RoomID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.clock.Now()
	}
	_ = s.broker.Publish(s.ctx, ev)
}

// clearError ends a failure streak and tells clients the notice is gone.
func (s *Scheduler) clearError() {
	if s.lastErr == "" {
		return
	}
	s.lastErr = ""
	s.publishSnapshot()
}

func (s *Scheduler) publishSnapshot() {
	snap := s.snapshot()
	s.publish(models.Event{Type: models.EventSnapshot, State: snap.State, Snapshot: &snap})
}

func (s *Scheduler) snapshot() models.Snapshot {
	msgs := make([]models.Message, len(s.messages))
	copy(msgs, s.messages)
	feelings := make(map[models.Speaker]models.Emotion, len(s.feelings))
	for k, v := range s.feelings {
		feelings[k] = v
	}
	snap := models.Snapshot{
		RoomID:       s.cfg.RoomID,
		Topic:        s.topic,
		PendingTopic: s.pendingTopic,
		State:        s.state,
		Mode:         s.mode.Name,
		TimeOfDay:    s.timeOfDay,
		Audio:        s.audio,
		LeftModel:    s.left,
		RightModel:   s.right,
		Messages:     msgs,
		Turns:        s.turns,
		MaxMessages:  s.mode.MaxMessages,
		Emotions:     feelings,
		Error:        s.lastErr,
		Speech:       s.speech,
	}
	if s.conv != nil {
		snap.ConversationID = s.conv.ID
	}
	return snap
}
