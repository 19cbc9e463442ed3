// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package node

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ChainSafe/malus/dot/parachain/malus/variants"
	"github.com/ChainSafe/malus/dot/parachain/messages"
	parachaintypes "github.com/ChainSafe/malus/dot/parachain/types"
	"github.com/ChainSafe/malus/dot/parachain/util"
	"github.com/ChainSafe/malus/dot/types"
	"github.com/ChainSafe/malus/lib/common"
)

const pollInterval = 20 * time.Millisecond

// Summary is the outcome of a run.
type Summary struct {
	RunID      string
	Variant    variants.Name
	Candidates int
	Backed     int
	Rejected   int
	Stored     int
	Disputes   []messages.Dispute
}

// Concluded counts the disputes with the status given.
func (s Summary) Concluded(status messages.DisputeStatus) (count int) {
	for _, dispute := range s.Disputes {
		if dispute.Status == status {
			count++
		}
	}
	return count
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s with variant %s\n", s.RunID, s.Variant)
	fmt.Fprintf(&b, "candidates: %d, backed: %d, rejected: %d, stored: %d\n",
		s.Candidates, s.Backed, s.Rejected, s.Stored)
	fmt.Fprintf(&b, "disputes: %d, concluded for: %d, concluded against: %d, active: %d",
		len(s.Disputes), s.Concluded(messages.DisputeStatusConcludedFor),
		s.Concluded(messages.DisputeStatusConcludedAgainst), s.Concluded(messages.DisputeStatusActive))
	return b.String()
}

// Run activates a leaf per candidate and asks the backing subsystem to second
// a candidate built on it. It returns once every candidate is backed or
// rejected and every dispute is concluded, or when the timeout expires.
func (n *Node) Run(ctx context.Context) (Summary, error) {
	if !n.isStarted() {
		return Summary{}, ErrNotStarted
	}

	summary := Summary{
		RunID:      n.runID.String(),
		Variant:    n.variant.Name,
		Candidates: n.cfg.Candidates,
	}

	var parent types.Header
	for i := 0; i < n.cfg.Candidates; i++ {
		header := types.Header{
			ParentHash: parent.Hash(),
			Number:     uint(i + 1),
			StateRoot:  common.MustBlake2bHash([]byte(fmt.Sprintf("%s/%d", n.runID, i))),
		}
		err := n.secondOnLeaf(ctx, &header, i)
		if err != nil {
			return summary, err
		}
		parent = header

		if i+1 < n.cfg.Candidates {
			select {
			case <-time.After(n.cfg.Interval):
			case <-ctx.Done():
				return summary, ctx.Err()
			}
		}
	}

	err := n.waitForCompletion(ctx, &summary)
	summary.Stored = len(n.availabilityStore.StoredCandidates())
	if err != nil {
		return summary, err
	}

	if n.cfg.Candidates > 0 {
		err = n.overseer.FinalizeBlock(ctx, parent.Hash(), uint32(parent.Number))
		if err != nil {
			return summary, fmt.Errorf("finalizing block %d: %w", parent.Number, err)
		}
	}
	return summary, nil
}

func (n *Node) secondOnLeaf(ctx context.Context, header *types.Header, index int) error {
	leaf := header.Hash()
	err := n.overseer.ActivateLeaf(ctx, leaf, uint32(header.Number))
	if err != nil {
		return fmt.Errorf("activating leaf %s: %w", leaf, err)
	}

	blockData := []byte(fmt.Sprintf("candidate %d of run %s", index, n.runID))
	receipt, pov, err := util.NewCandidate(parachaintypes.ParaID(n.cfg.ParaID), leaf, blockData)
	if err != nil {
		return fmt.Errorf("building candidate %d: %w", index, err)
	}

	err = n.overseer.Handle().SendMessage(ctx, messages.Second{
		RelayParent:      leaf,
		CandidateReceipt: receipt,
		PoV:              pov,
	})
	if err != nil {
		return fmt.Errorf("seconding candidate %s: %w", receipt.Hash(), err)
	}
	logger.Debugf("seconding candidate %s on leaf %s", receipt.Hash(), leaf)
	return nil
}

func (n *Node) waitForCompletion(ctx context.Context, summary *Summary) error {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		done, err := n.poll(ctx, summary)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("%w: %d of %d candidates processed, %d active disputes: %w", ErrIncomplete,
				summary.Backed+summary.Rejected, summary.Candidates,
				summary.Concluded(messages.DisputeStatusActive), ctx.Err())
		}
	}
}

func (n *Node) poll(ctx context.Context, summary *Summary) (done bool, err error) {
	getBacked := messages.NewGetBackedCandidates()
	err = n.overseer.Handle().SendMessage(ctx, getBacked)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("getting backed candidates: %w", err)
	}

	var backed messages.BackedCandidates
	select {
	case backed = <-getBacked.Ch:
	case <-ctx.Done():
		return false, nil
	}

	// the disputes are queried after the candidates: a rejected candidate has
	// its statement queued in the dispute coordinator already
	activeDisputes := messages.NewActiveDisputes()
	err = n.overseer.Handle().SendMessage(ctx, activeDisputes)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("getting disputes: %w", err)
	}

	select {
	case summary.Disputes = <-activeDisputes.Sender:
	case <-ctx.Done():
		return false, nil
	}

	summary.Backed = len(backed.Backed)
	summary.Rejected = len(backed.Rejected)
	return summary.Backed+summary.Rejected >= summary.Candidates &&
		summary.Concluded(messages.DisputeStatusActive) == 0, nil
}
