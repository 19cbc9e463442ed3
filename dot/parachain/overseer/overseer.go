// Copyright 2023 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package overseer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/internal/log"
	"github.com/ChainSafe/malus/lib/common"
	"github.com/ChainSafe/malus/lib/metered"
	"github.com/google/uuid"
)

var (
	logger = log.NewFromGlobal(log.AddContext("pkg", "parachain-overseer"))
)

var (
	ErrOverseerStarted    = errors.New("overseer already started")
	ErrOverseerStopped    = errors.New("overseer stopped")
	ErrDuplicateSubsystem = errors.New("subsystem already registered")
	ErrDuplicateMessage   = errors.New("message type already registered")
	ErrUnroutableMessage  = errors.New("no subsystem accepts message")
)

// Config holds the overseer settings.
type Config struct {
	// ChannelCapacity is the capacity of the bounded message lane of each subsystem.
	ChannelCapacity int
	// SignalCapacity is the capacity of the signal channel of each subsystem.
	SignalCapacity int
	// QueueSizeWarning is the queue length from which a warning is logged once per channel.
	QueueSizeWarning int
	// BlockingTaskSlots bounds the number of blocking tasks running at once.
	BlockingTaskSlots int
	// StopTimeout is how long Stop waits for subsystems and tasks to return.
	StopTimeout time.Duration
	Metrics     *metered.Metrics
}

// DefaultConfig returns the default overseer configuration.
func DefaultConfig() Config {
	return Config{
		ChannelCapacity:   1024,
		SignalCapacity:    64,
		QueueSizeWarning:  512,
		BlockingTaskSlots: 4,
		StopTimeout:       500 * time.Millisecond,
	}
}

type subsystemEntry struct {
	name        parachaintypes.SubSystemName
	messageType reflect.Type
	messages    *metered.Channel[any]
	signals  *metered.Channel[parachaintypes.OverseerSignal]
	accepts  func(msg any) bool
	start    func() SpawnedSubsystem
}

// Overseer starts the subsystems, routes messages between them and
// broadcasts signals to all of them.
type Overseer struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config

	blockState BlockState

	mutex        sync.Mutex
	subsystems   []*subsystemEntry
	started      bool
	stopped      bool
	tasksClosed  bool
	activeLeaves map[common.Hash]uint32
	errs         []error

	subsystemsWG  sync.WaitGroup
	tasksWG       sync.WaitGroup
	blockingSlots chan struct{}
}

// NewOverseer returns an overseer. blockState may be nil, in which case leaves
// are only driven through ActivateLeaf, DeactivateLeaf and FinalizeBlock.
func NewOverseer(cfg Config, blockState BlockState) *Overseer {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.BlockingTaskSlots <= 0 {
		cfg.BlockingTaskSlots = 1
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metered.DefaultMetrics()
	}
	return &Overseer{
		ctx:           ctx,
		cancel:        cancel,
		cfg:           cfg,
		blockState:    blockState,
		activeLeaves:  make(map[common.Hash]uint32),
		blockingSlots: make(chan struct{}, cfg.BlockingTaskSlots),
	}
}

// RegisterSubsystem registers a subsystem receiving messages of type M and
// sending messages of type O. Any message whose dynamic type implements M is
// routed to it. Subsystems must be registered before the overseer starts.
// Two subsystems cannot receive the same M. If a message implements the M of
// several subsystems, it goes to the one registered first.
func RegisterSubsystem[M, O any](o *Overseer, name parachaintypes.SubSystemName, sub Subsystem[M, O]) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.started {
		return fmt.Errorf("registering %s: %w", name, ErrOverseerStarted)
	}
	messageType := reflect.TypeOf((*M)(nil)).Elem()
	for _, entry := range o.subsystems {
		if entry.name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateSubsystem, name)
		}
		if entry.messageType == messageType {
			return fmt.Errorf("registering %s: %w: %s is received by %s",
				name, ErrDuplicateMessage, messageType, entry.name)
		}
	}

	entry := &subsystemEntry{
		name:        name,
		messageType: messageType,
		messages: metered.New[any](string(name), o.cfg.ChannelCapacity,
			metered.QueueSizeWarning(o.cfg.QueueSizeWarning), metered.WithMetrics(o.cfg.Metrics)),
		signals: metered.New[parachaintypes.OverseerSignal](string(name)+"-signals", o.cfg.SignalCapacity,
			metered.WithMetrics(o.cfg.Metrics)),
		accepts: func(msg any) bool {
			_, ok := msg.(M)
			return ok
		},
	}
	entry.start = func() SpawnedSubsystem {
		sctx := &subsystemContext[M, O]{
			overseer: o,
			entry:    entry,
			sender:   &sender[O]{overseer: o, from: name},
		}
		return sub.Start(sctx)
	}
	o.subsystems = append(o.subsystems, entry)
	return nil
}

// Start starts all registered subsystems and, if a block state is set,
// follows imported and finalised blocks.
func (o *Overseer) Start() error {
	o.mutex.Lock()
	if o.started {
		o.mutex.Unlock()
		return ErrOverseerStarted
	}
	if o.stopped {
		o.mutex.Unlock()
		return ErrOverseerStopped
	}
	o.started = true
	subsystems := o.subsystems
	if o.blockState != nil {
		o.tasksWG.Add(1)
	}
	o.mutex.Unlock()

	for _, entry := range subsystems {
		spawned := entry.start()
		o.subsystemsWG.Add(1)
		go func(entry *subsystemEntry, spawned SpawnedSubsystem) {
			defer o.subsystemsWG.Done()
			err := spawned.Future(o.ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("running subsystem %s failed: %s", spawned.Name, err)
				o.mutex.Lock()
				o.errs = append(o.errs, fmt.Errorf("subsystem %s: %w", spawned.Name, err))
				o.mutex.Unlock()
			}
			logger.Infof("subsystem %s stopped", spawned.Name)
		}(entry, spawned)
	}

	if o.blockState != nil {
		go o.handleBlockEvents()
	}

	logger.Infof("overseer started with %d subsystems", len(subsystems))
	return nil
}

// Stop sends the conclude signal to every subsystem, waits for them to return
// and releases their channels. It returns the errors of failed subsystems.
func (o *Overseer) Stop() error {
	o.mutex.Lock()
	if o.stopped {
		o.mutex.Unlock()
		return nil
	}
	o.stopped = true
	o.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.StopTimeout)
	err := o.BroadcastSignal(ctx, parachaintypes.ConcludeSignal{})
	cancel()
	if err != nil {
		logger.Warnf("sending conclude signal: %s", err)
	}

	if waitTimeout(&o.subsystemsWG, o.cfg.StopTimeout) {
		logger.Warnf("subsystems did not stop within %s", o.cfg.StopTimeout)
	}

	// no task can be added once tasksWG is waited on
	o.mutex.Lock()
	o.tasksClosed = true
	o.mutex.Unlock()

	o.cancel()
	if waitTimeout(&o.tasksWG, o.cfg.StopTimeout) {
		logger.Warnf("tasks did not stop within %s", o.cfg.StopTimeout)
	}

	o.mutex.Lock()
	defer o.mutex.Unlock()
	for _, entry := range o.subsystems {
		entry.messages.Drop()
		entry.signals.Drop()
	}

	logger.Info("overseer stopped")
	return errors.Join(o.errs...)
}

// Handle returns a sender for messages coming from outside the subsystems.
func (o *Overseer) Handle() SubsystemSender[any] {
	return &sender[any]{overseer: o, from: "overseer"}
}

// BroadcastSignal sends the signal to every subsystem.
func (o *Overseer) BroadcastSignal(ctx context.Context, signal parachaintypes.OverseerSignal) error {
	o.mutex.Lock()
	subsystems := o.subsystems
	o.mutex.Unlock()

	var errs []error
	for _, entry := range subsystems {
		err := entry.signals.Send(ctx, signal)
		if err != nil {
			errs = append(errs, fmt.Errorf("sending %T to %s: %w", signal, entry.name, err))
		}
	}
	return errors.Join(errs...)
}

// ActivateLeaf marks the block as an active leaf, deactivating the given
// hashes, and signals the update. Nothing is sent if the update is empty.
func (o *Overseer) ActivateLeaf(ctx context.Context, hash common.Hash, number uint32,
	deactivated ...common.Hash) error {
	o.mutex.Lock()
	update := parachaintypes.ActiveLeavesUpdateSignal{}
	if _, ok := o.activeLeaves[hash]; !ok {
		o.activeLeaves[hash] = number
		update.Activated = &parachaintypes.ActivatedLeaf{Hash: hash, Number: number}
	}
	update.Deactivated = o.deactivateLocked(deactivated)
	o.mutex.Unlock()

	if update.Activated == nil && len(update.Deactivated) == 0 {
		return nil
	}
	return o.BroadcastSignal(ctx, update)
}

// DeactivateLeaf removes the active leaves given and signals the update.
func (o *Overseer) DeactivateLeaf(ctx context.Context, hashes ...common.Hash) error {
	o.mutex.Lock()
	deactivated := o.deactivateLocked(hashes)
	o.mutex.Unlock()

	if len(deactivated) == 0 {
		return nil
	}
	return o.BroadcastSignal(ctx, parachaintypes.ActiveLeavesUpdateSignal{Deactivated: deactivated})
}

// FinalizeBlock signals the finalised block, then deactivates the active
// leaves below it.
func (o *Overseer) FinalizeBlock(ctx context.Context, hash common.Hash, number uint32) error {
	err := o.BroadcastSignal(ctx, parachaintypes.BlockFinalizedSignal{Hash: hash, BlockNumber: number})
	if err != nil {
		return err
	}

	o.mutex.Lock()
	var stale []common.Hash
	for leaf, leafNumber := range o.activeLeaves {
		if leafNumber < number {
			stale = append(stale, leaf)
		}
	}
	o.mutex.Unlock()

	return o.DeactivateLeaf(ctx, stale...)
}

// ActiveLeaves returns the active leaves and their block number.
func (o *Overseer) ActiveLeaves() map[common.Hash]uint32 {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	leaves := make(map[common.Hash]uint32, len(o.activeLeaves))
	for hash, number := range o.activeLeaves {
		leaves[hash] = number
	}
	return leaves
}

func (o *Overseer) deactivateLocked(hashes []common.Hash) (deactivated []common.Hash) {
	for _, hash := range hashes {
		if _, ok := o.activeLeaves[hash]; ok {
			delete(o.activeLeaves, hash)
			deactivated = append(deactivated, hash)
		}
	}
	return deactivated
}

func (o *Overseer) handleBlockEvents() {
	defer o.tasksWG.Done()

	imported := o.blockState.GetImportedBlockNotifierChannel()
	finalised := o.blockState.GetFinalisedNotifierChannel()
	defer func() {
		o.blockState.FreeImportedBlockNotifierChannel(imported)
		o.blockState.FreeFinalisedNotifierChannel(finalised)
	}()

	for {
		select {
		case <-o.ctx.Done():
			return
		case block := <-imported:
			if block == nil {
				continue
			}
			header := block.Header
			err := o.ActivateLeaf(o.ctx, header.Hash(), uint32(header.Number), header.ParentHash)
			if err != nil {
				logger.Errorf("activating leaf %s: %s", header.Hash(), err)
			}
		case info := <-finalised:
			if info == nil {
				continue
			}
			header := info.Header
			err := o.FinalizeBlock(o.ctx, header.Hash(), uint32(header.Number))
			if err != nil {
				logger.Errorf("finalizing block %s: %s", header.Hash(), err)
			}
		}
	}
}

// route returns the first registered subsystem accepting msg.
func (o *Overseer) route(msg any) (*subsystemEntry, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	for _, entry := range o.subsystems {
		if entry.accepts(msg) {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrUnroutableMessage, msg)
}

func (o *Overseer) spawn(owner parachaintypes.SubSystemName, name string, blocking bool,
	task func(ctx context.Context)) error {
	o.mutex.Lock()
	if o.tasksClosed || o.ctx.Err() != nil {
		o.mutex.Unlock()
		return fmt.Errorf("spawning %s: %w", name, ErrOverseerStopped)
	}
	o.tasksWG.Add(1)
	o.mutex.Unlock()

	id := uuid.New()
	logger.Tracef("spawning task %s (%s) for %s", name, id, owner)

	go func() {
		defer o.tasksWG.Done()
		if blocking {
			select {
			case o.blockingSlots <- struct{}{}:
			case <-o.ctx.Done():
				return
			}
			defer func() { <-o.blockingSlots }()
		}
		task(o.ctx)
		logger.Tracef("task %s (%s) for %s done", name, id, owner)
	}()
	return nil
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) (timeouted bool) {
	c := make(chan struct{})
	go func() {
		defer close(c)
		wg.Wait()
	}()
	timeoutTimer := time.NewTimer(timeout)
	select {
	case <-c:
		if !timeoutTimer.Stop() {
			<-timeoutTimer.C
		}
		return false // completed normally
	case <-timeoutTimer.C:
		return true // timed out
	}
}
