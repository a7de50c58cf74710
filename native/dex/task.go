package dex

import (
	"fmt"

	"leasechain/native/finance"
	"leasechain/native/platform"
)

// Flow is the sequence of stages a task walks through.
type Flow uint8

const (
	// FlowOpening transfers the downpayment and loan out and buys the asset.
	FlowOpening Flow = iota + 1
	// FlowRepayment transfers a payment out, buys LPN and brings it back.
	FlowRepayment
	// FlowClosing sells part or all of the asset and brings the LPN back.
	FlowClosing
	// FlowReturnAsset brings the asset back unchanged.
	FlowReturnAsset
)

// Stage is one step of a flow.
type Stage uint8

const (
	StageTransferOut Stage = iota + 1
	StageSwap
	StageTransferInInit
	StageTransferInFinish
)

// Phase is where a task stands inside its stage.
type Phase uint8

const (
	PhaseAwaitingAck Phase = iota + 1
	PhaseAwaitingCallback
	PhaseRecoveringIca
	PhaseAnomaly
	PhaseAwaitingBalance
	PhaseCompleted
)

var flowStages = map[Flow][]Stage{
	FlowOpening:     {StageTransferOut, StageSwap},
	FlowRepayment:   {StageTransferOut, StageSwap, StageTransferInInit, StageTransferInFinish},
	FlowClosing:     {StageSwap, StageTransferInInit, StageTransferInFinish},
	FlowReturnAsset: {StageTransferInInit, StageTransferInFinish},
}

func (f Flow) first() (Stage, bool) {
	stages := flowStages[f]
	if len(stages) == 0 {
		return 0, false
	}
	return stages[0], true
}

func (f Flow) next(s Stage) (Stage, bool) {
	stages := flowStages[f]
	for i, stage := range stages {
		if stage == s && i+1 < len(stages) {
			return stages[i+1], true
		}
	}
	return 0, false
}

func (f Flow) String() string {
	switch f {
	case FlowOpening:
		return "opening"
	case FlowRepayment:
		return "repayment"
	case FlowClosing:
		return "closing"
	case FlowReturnAsset:
		return "return_asset"
	default:
		return fmt.Sprintf("flow(%d)", uint8(f))
	}
}

func (s Stage) String() string {
	switch s {
	case StageTransferOut:
		return "transfer_out"
	case StageSwap:
		return "swap"
	case StageTransferInInit:
		return "transfer_in_init"
	case StageTransferInFinish:
		return "transfer_in_finish"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingAck:
		return "awaiting_ack"
	case PhaseAwaitingCallback:
		return "awaiting_callback"
	case PhaseRecoveringIca:
		return "recovering_ica"
	case PhaseAnomaly:
		return "anomaly"
	case PhaseAwaitingBalance:
		return "awaiting_balance"
	case PhaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Task is the persisted progress of one DEX flow.
type Task struct {
	Flow  Flow
	Stage Stage
	Phase Phase
	// Coins are the inputs of the flow; Index is the next one to transfer out.
	Coins  []finance.Coin
	Index  uint64
	Target string
	// Received accumulates what the swap stage bought.
	Received finance.Coin
	// Baseline is the local balance before the transfer in was issued.
	Baseline finance.Coin
	Swaps    uint64
	Pending  platform.Pending
	Deadline finance.Timestamp
	Attempts uint64
}

// Done reports whether the flow completed and only awaits its continuation.
func (t Task) Done() bool { return t.Phase == PhaseCompleted }

// Anomalous reports whether the task stopped on a failed swap.
func (t Task) Anomalous() bool { return t.Phase == PhaseAnomaly }

// Label renders the position of the task for queries and logs.
func (t Task) Label() string {
	return fmt.Sprintf("%s/%s/%s", t.Flow, t.Stage, t.Phase)
}
