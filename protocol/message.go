// Package protocol implements the planner<->connector request/response
// protocol (spec.md §4.6): a strictly ordered message loop, one session per
// SQL statement, that incrementally offers SQIL operations to a connector
// and receives per-operation feasibility/cost decisions.
//
// Grounded on ansilo-pg/src/fdw/connection.rs's FdwConnection message loop
// and its FdwQueryState state machine, reshaped onto the repo's flat
// Kind-discriminant struct style (sqil.Expr, sqil.Query) instead of Rust
// enums.
package protocol

import (
	"github.com/sqilrun/sqil/sqil"
	"github.com/sqilrun/sqil/value"
)

// OperationCost mirrors ansilo's OperationCost: every field is optional
// because a connector may leave some unestimated, in which case the
// planner substitutes its own defaults (spec.md §4.7.3).
type OperationCost struct {
	Rows           *uint64
	RowWidth       *uint64
	ConnectionCost *uint64
	TotalCost      *uint64
}

// QueryOperationResultKind discriminates how a connector disposed of an
// offered operation (spec.md §4.6 rules 3-5).
type QueryOperationResultKind uint8

const (
	PerformedRemotely QueryOperationResultKind = iota
	PerformedLocally
	Unsupported
)

// QueryOperationResult is the connector's verdict on one Create/Apply
// message. Cost is populated only for PerformedRemotely.
type QueryOperationResult struct {
	Kind QueryOperationResultKind
	Cost *OperationCost
}

// SelectOpKind enumerates the incremental mutations a planner can apply to
// a SELECT under construction.
type SelectOpKind uint8

const (
	SelectAddColumn SelectOpKind = iota
	SelectAddWhere
	SelectAddJoin
	SelectAddGroupBy
	SelectAddOrderBy
	SelectSetRowLimit
	SelectSetRowOffset
	SelectSetRowLockMode
)

// SelectOperation carries exactly the fields relevant to Kind, the same
// discipline sqil.Expr uses for its own variants.
type SelectOperation struct {
	Kind SelectOpKind

	ColAlias string
	Expr     sqil.Expr

	Join sqil.Join

	Ordering sqil.Ordering

	RowLimit  uint64
	RowOffset uint64
	RowLock   sqil.RowLockMode
}

type InsertOpKind uint8

const (
	InsertAddColumn InsertOpKind = iota
)

type InsertOperation struct {
	Kind      InsertOpKind
	Attribute string
	Expr      sqil.Expr
}

type UpdateOpKind uint8

const (
	UpdateAddSet UpdateOpKind = iota
	UpdateAddWhere
)

type UpdateOperation struct {
	Kind      UpdateOpKind
	Attribute string
	Expr      sqil.Expr
}

type DeleteOpKind uint8

const (
	DeleteAddWhere DeleteOpKind = iota
)

type DeleteOperation struct {
	Kind DeleteOpKind
	Expr sqil.Expr
}

// CreateOrApplyKind discriminates the two messages every query-kind message
// family carries: Create starts a fresh query of that kind, Apply mutates
// the one already in progress.
type CreateOrApplyKind uint8

const (
	OpCreate CreateOrApplyKind = iota
	OpApply
)

// QueryInputStructure is the Prepare response: the ordered parameter ids
// and types the caller must supply via WriteParams, in declaration order.
type QueryInputStructure struct {
	Params []ParamSpec
}

// ParamSpec names one prepared parameter's id and declared type.
type ParamSpec struct {
	Id   uint32
	Type value.Type
}

// ColumnSpec is one column of a RowStructure.
type ColumnSpec struct {
	Name string
	Type value.Type
}

// RowStructure is the Execute response: the result set's column schema.
type RowStructure struct {
	Cols []ColumnSpec
}

// ClientMessageKind discriminates the request half of the protocol.
type ClientMessageKind uint8

const (
	ClientEstimateSize ClientMessageKind = iota
	ClientSelect
	ClientInsert
	ClientUpdate
	ClientDelete
	ClientExplain
	ClientPrepare
	ClientWriteParams
	ClientExecute
	ClientRead
	ClientRestartQuery
	ClientClose
)

// ClientMessage is the sum of every request the protocol accepts. Exactly
// the fields relevant to Kind are populated.
type ClientMessage struct {
	Kind ClientMessageKind

	Entity sqil.EntityId

	CreateOrApply CreateOrApplyKind
	Source        sqil.EntitySource // Create
	SelectOp      SelectOperation   // Select + Apply
	InsertOp      InsertOperation   // Insert + Apply
	UpdateOp      UpdateOperation   // Update + Apply
	DeleteOp      DeleteOperation   // Delete + Apply

	Verbose bool   // Explain
	Data    []byte // WriteParams
	ReadLen uint32 // Read
}

func EstimateSizeMsg(entity sqil.EntityId) ClientMessage {
	return ClientMessage{Kind: ClientEstimateSize, Entity: entity}
}

func CreateSelectMsg(src sqil.EntitySource) ClientMessage {
	return ClientMessage{Kind: ClientSelect, CreateOrApply: OpCreate, Source: src}
}

func ApplySelectMsg(op SelectOperation) ClientMessage {
	return ClientMessage{Kind: ClientSelect, CreateOrApply: OpApply, SelectOp: op}
}

func CreateInsertMsg(target sqil.EntitySource) ClientMessage {
	return ClientMessage{Kind: ClientInsert, CreateOrApply: OpCreate, Source: target}
}

func ApplyInsertMsg(op InsertOperation) ClientMessage {
	return ClientMessage{Kind: ClientInsert, CreateOrApply: OpApply, InsertOp: op}
}

func CreateUpdateMsg(target sqil.EntitySource) ClientMessage {
	return ClientMessage{Kind: ClientUpdate, CreateOrApply: OpCreate, Source: target}
}

func ApplyUpdateMsg(op UpdateOperation) ClientMessage {
	return ClientMessage{Kind: ClientUpdate, CreateOrApply: OpApply, UpdateOp: op}
}

func CreateDeleteMsg(target sqil.EntitySource) ClientMessage {
	return ClientMessage{Kind: ClientDelete, CreateOrApply: OpCreate, Source: target}
}

func ApplyDeleteMsg(op DeleteOperation) ClientMessage {
	return ClientMessage{Kind: ClientDelete, CreateOrApply: OpApply, DeleteOp: op}
}

func ExplainMsg(verbose bool) ClientMessage { return ClientMessage{Kind: ClientExplain, Verbose: verbose} }
func PrepareMsg() ClientMessage             { return ClientMessage{Kind: ClientPrepare} }
func WriteParamsMsg(data []byte) ClientMessage {
	return ClientMessage{Kind: ClientWriteParams, Data: data}
}
func ExecuteMsg() ClientMessage            { return ClientMessage{Kind: ClientExecute} }
func ReadMsg(n uint32) ClientMessage        { return ClientMessage{Kind: ClientRead, ReadLen: n} }
func RestartQueryMsg() ClientMessage       { return ClientMessage{Kind: ClientRestartQuery} }
func CloseMsg() ClientMessage              { return ClientMessage{Kind: ClientClose} }

// ServerMessageKind discriminates the response half of the protocol.
type ServerMessageKind uint8

const (
	ServerEstimatedSizeResult ServerMessageKind = iota
	ServerSelectResult
	ServerInsertResult
	ServerUpdateResult
	ServerDeleteResult
	ServerExplainResult
	ServerQueryPrepared
	ServerQueryParamsWritten
	ServerQueryExecuted
	ServerResultData
	ServerQueryRestarted
	ServerGenericError
)

// ServerMessage is the sum of every response the protocol emits. Exactly
// the fields relevant to Kind are populated.
type ServerMessage struct {
	Kind ServerMessageKind

	Cost     *OperationCost        // EstimatedSizeResult
	OpResult *QueryOperationResult // Select/Insert/Update/Delete Result

	Explain string // ExplainResult (JSON text)

	Structure *QueryInputStructure // QueryPrepared
	Row       *RowStructure        // QueryExecuted
	Data      []byte               // ResultData

	Err string // GenericError
}
