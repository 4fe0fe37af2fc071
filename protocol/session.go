package protocol

import (
	"fmt"
	"log"

	"github.com/sqilrun/sqil/sqil"
)

// ProtocolError reports a message arriving while the session is in a state
// that does not accept it (spec.md §4.6 rules 1-2), or any other
// session-level violation. Once raised, the session is poisoned: every
// subsequent message except Close is rejected with the same error type.
type ProtocolError struct {
	State  string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s: %s", e.State, e.Reason)
}

// QueryHandle is a prepared, not-yet-executed query; Connector.Prepare
// returns one. It mirrors ansilo's QueryHandleWrite.
type QueryHandle interface {
	Structure() QueryInputStructure
	WriteParams(data []byte) error
	Execute() (ResultCursor, error)
}

// ResultCursor streams the framed row bytes of an executed query and
// supports the RestartQuery message (re-running the prepared query without
// re-applying operations).
type ResultCursor interface {
	Structure() RowStructure
	Read(p []byte) (int, error)
	Restart() error
}

// Connector is what a session drives on the remote side: entity sizing,
// incremental query construction/mutation for all four query kinds, a
// JSON explain, and compile/prepare. It is the Go counterpart of ansilo's
// TConnector type-family (TQueryPlanner/TQueryCompiler/TQueryHandle
// collapsed into one interface, since Go prefers accepting interfaces over
// parameterizing a struct by a family of associated types).
type Connector interface {
	EstimateSize(id sqil.EntityId) (OperationCost, error)

	CreateSelect(src sqil.EntitySource) (OperationCost, sqil.Select, error)
	ApplySelect(sel *sqil.Select, op SelectOperation) (QueryOperationResult, error)

	CreateInsert(target sqil.EntitySource) (OperationCost, sqil.Insert, error)
	ApplyInsert(ins *sqil.Insert, op InsertOperation) (QueryOperationResult, error)

	CreateUpdate(target sqil.EntitySource) (OperationCost, sqil.Update, error)
	ApplyUpdate(upd *sqil.Update, op UpdateOperation) (QueryOperationResult, error)

	CreateDelete(target sqil.EntitySource) (OperationCost, sqil.Delete, error)
	ApplyDelete(del *sqil.Delete, op DeleteOperation) (QueryOperationResult, error)

	Explain(query sqil.Query, verbose bool) (string, error)
	Prepare(query sqil.Query) (QueryHandle, error)
}

// queryState is the FdwQueryState state machine: exactly one query is
// active per session (spec.md §4.6 rule 1); Create resets it back to
// planning a fresh query of that kind.
type queryState uint8

const (
	stateNew queryState = iota
	statePlanning
	statePrepared
	stateExecuted
)

func (s queryState) String() string {
	switch s {
	case stateNew:
		return "new"
	case statePlanning:
		return "planning"
	case statePrepared:
		return "prepared"
	case stateExecuted:
		return "executed"
	default:
		return "?"
	}
}

// Session is one SQL statement's planning and (optionally) execution
// conversation with a Connector. Messages are strictly ordered
// request-reply (spec.md §5): callers must not invoke Handle again until
// the previous call returned.
type Session struct {
	connector Connector
	logger    *log.Logger

	state    queryState
	query    sqil.Query
	handle   QueryHandle
	cursor   ResultCursor
	poisoned bool
}

// NewSession starts a session against connector. logger may be nil; when
// present it receives one line per poisoning error, matching the teacher's
// posture of logging only when a logger is supplied (SPEC_FULL.md ambient
// stack).
func NewSession(connector Connector, logger *log.Logger) *Session {
	return &Session{connector: connector, logger: logger}
}

// Handle processes one request and returns its response. closed reports
// whether the client sent Close, in which case resp is the zero value and
// the caller must stop sending further messages on this session.
func (s *Session) Handle(msg ClientMessage) (resp ServerMessage, closed bool) {
	if msg.Kind == ClientClose {
		return ServerMessage{}, true
	}

	if s.poisoned {
		return s.poison(&ProtocolError{State: s.state.String(), Reason: "session already poisoned by a prior error"})
	}

	out, err := s.dispatch(msg)
	if err != nil {
		return s.poison(err)
	}
	return out, false
}

func (s *Session) poison(err error) (ServerMessage, bool) {
	s.poisoned = true
	if s.logger != nil {
		s.logger.Printf("protocol: session poisoned: %v", err)
	}
	return ServerMessage{Kind: ServerGenericError, Err: err.Error()}, false
}

func (s *Session) dispatch(msg ClientMessage) (ServerMessage, error) {
	switch msg.Kind {
	case ClientEstimateSize:
		cost, err := s.connector.EstimateSize(msg.Entity)
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{Kind: ServerEstimatedSizeResult, Cost: &cost}, nil

	case ClientSelect:
		return s.handleSelect(msg)
	case ClientInsert:
		return s.handleInsert(msg)
	case ClientUpdate:
		return s.handleUpdate(msg)
	case ClientDelete:
		return s.handleDelete(msg)

	case ClientExplain:
		if s.state == stateNew {
			return ServerMessage{}, &ProtocolError{State: s.state.String(), Reason: "no query to explain"}
		}
		json, err := s.connector.Explain(s.query, msg.Verbose)
		if err != nil {
			return ServerMessage{}, err
		}
		return ServerMessage{Kind: ServerExplainResult, Explain: json}, nil

	case ClientPrepare:
		return s.prepare()
	case ClientWriteParams:
		return s.writeParams(msg.Data)
	case ClientExecute:
		return s.execute()
	case ClientRead:
		return s.read(msg.ReadLen)
	case ClientRestartQuery:
		return s.restartQuery()

	default:
		return ServerMessage{}, &ProtocolError{State: s.state.String(), Reason: "unexpected or malformed message"}
	}
}

// requirePlanning enforces rule 2: Apply may only arrive while planning.
func (s *Session) requirePlanning(kind string) error {
	if s.state != statePlanning {
		return &ProtocolError{State: s.state.String(), Reason: fmt.Sprintf("%s apply requires a query in planning state", kind)}
	}
	return nil
}

func (s *Session) handleSelect(msg ClientMessage) (ServerMessage, error) {
	if msg.CreateOrApply == OpCreate {
		cost, sel, err := s.connector.CreateSelect(msg.Source)
		if err != nil {
			return ServerMessage{}, err
		}
		s.query = sqil.NewSelect(sel)
		s.state = statePlanning
		res := QueryOperationResult{Kind: PerformedRemotely, Cost: &cost}
		return ServerMessage{Kind: ServerSelectResult, OpResult: &res}, nil
	}

	if err := s.requirePlanning("select"); err != nil {
		return ServerMessage{}, err
	}
	sel, _ := s.query.AsSelect()
	res, err := s.connector.ApplySelect(sel, msg.SelectOp)
	if err != nil {
		return ServerMessage{}, err
	}
	return ServerMessage{Kind: ServerSelectResult, OpResult: &res}, nil
}

func (s *Session) handleInsert(msg ClientMessage) (ServerMessage, error) {
	if msg.CreateOrApply == OpCreate {
		cost, ins, err := s.connector.CreateInsert(msg.Source)
		if err != nil {
			return ServerMessage{}, err
		}
		s.query = sqil.NewInsert(ins)
		s.state = statePlanning
		res := QueryOperationResult{Kind: PerformedRemotely, Cost: &cost}
		return ServerMessage{Kind: ServerInsertResult, OpResult: &res}, nil
	}

	if err := s.requirePlanning("insert"); err != nil {
		return ServerMessage{}, err
	}
	ins, _ := s.query.AsInsert()
	res, err := s.connector.ApplyInsert(ins, msg.InsertOp)
	if err != nil {
		return ServerMessage{}, err
	}
	return ServerMessage{Kind: ServerInsertResult, OpResult: &res}, nil
}

func (s *Session) handleUpdate(msg ClientMessage) (ServerMessage, error) {
	if msg.CreateOrApply == OpCreate {
		cost, upd, err := s.connector.CreateUpdate(msg.Source)
		if err != nil {
			return ServerMessage{}, err
		}
		s.query = sqil.NewUpdate(upd)
		s.state = statePlanning
		res := QueryOperationResult{Kind: PerformedRemotely, Cost: &cost}
		return ServerMessage{Kind: ServerUpdateResult, OpResult: &res}, nil
	}

	if err := s.requirePlanning("update"); err != nil {
		return ServerMessage{}, err
	}
	upd, _ := s.query.AsUpdate()
	res, err := s.connector.ApplyUpdate(upd, msg.UpdateOp)
	if err != nil {
		return ServerMessage{}, err
	}
	return ServerMessage{Kind: ServerUpdateResult, OpResult: &res}, nil
}

func (s *Session) handleDelete(msg ClientMessage) (ServerMessage, error) {
	if msg.CreateOrApply == OpCreate {
		cost, del, err := s.connector.CreateDelete(msg.Source)
		if err != nil {
			return ServerMessage{}, err
		}
		s.query = sqil.NewDelete(del)
		s.state = statePlanning
		res := QueryOperationResult{Kind: PerformedRemotely, Cost: &cost}
		return ServerMessage{Kind: ServerDeleteResult, OpResult: &res}, nil
	}

	if err := s.requirePlanning("delete"); err != nil {
		return ServerMessage{}, err
	}
	del, _ := s.query.AsDelete()
	res, err := s.connector.ApplyDelete(del, msg.DeleteOp)
	if err != nil {
		return ServerMessage{}, err
	}
	return ServerMessage{Kind: ServerDeleteResult, OpResult: &res}, nil
}

func (s *Session) prepare() (ServerMessage, error) {
	if s.state != statePlanning {
		return ServerMessage{}, &ProtocolError{State: s.state.String(), Reason: "prepare requires a query in planning state"}
	}
	handle, err := s.connector.Prepare(s.query)
	if err != nil {
		return ServerMessage{}, err
	}
	s.handle = handle
	s.state = statePrepared
	structure := handle.Structure()
	return ServerMessage{Kind: ServerQueryPrepared, Structure: &structure}, nil
}

func (s *Session) writeParams(data []byte) (ServerMessage, error) {
	if s.state != statePrepared {
		return ServerMessage{}, &ProtocolError{State: s.state.String(), Reason: "write_params requires a prepared query"}
	}
	if err := s.handle.WriteParams(data); err != nil {
		return ServerMessage{}, err
	}
	return ServerMessage{Kind: ServerQueryParamsWritten}, nil
}

func (s *Session) execute() (ServerMessage, error) {
	if s.state != statePrepared {
		return ServerMessage{}, &ProtocolError{State: s.state.String(), Reason: "execute requires a prepared query"}
	}
	cursor, err := s.handle.Execute()
	if err != nil {
		return ServerMessage{}, err
	}
	s.cursor = cursor
	s.state = stateExecuted
	row := cursor.Structure()
	return ServerMessage{Kind: ServerQueryExecuted, Row: &row}, nil
}

func (s *Session) read(length uint32) (ServerMessage, error) {
	if s.state != stateExecuted {
		return ServerMessage{}, &ProtocolError{State: s.state.String(), Reason: "read requires an executed query"}
	}
	buf := make([]byte, length)
	n, err := s.cursor.Read(buf)
	if err != nil {
		return ServerMessage{}, err
	}
	return ServerMessage{Kind: ServerResultData, Data: buf[:n]}, nil
}

func (s *Session) restartQuery() (ServerMessage, error) {
	if s.state != stateExecuted {
		return ServerMessage{}, &ProtocolError{State: s.state.String(), Reason: "restart_query requires an executed query"}
	}
	if err := s.cursor.Restart(); err != nil {
		return ServerMessage{}, err
	}
	s.state = statePrepared
	return ServerMessage{Kind: ServerQueryRestarted}, nil
}
