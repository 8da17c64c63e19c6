// Package engine drives one workflow execution from start node to end
// node: it validates the graph, expands node configs, dispatches
// executors, applies state rules, resolves edges, recurses into
// sub-workflows, and reconciles the execution journal.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	execmodel "github.com/flowbase-io/flowbase/internal/execution/domain/model"
	execrepo "github.com/flowbase-io/flowbase/internal/execution/domain/repository"
	"github.com/flowbase-io/flowbase/internal/node/runtime"
	"github.com/flowbase-io/flowbase/internal/platform/config"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
	"github.com/flowbase-io/flowbase/internal/platform/metrics"
	wfmodel "github.com/flowbase-io/flowbase/internal/workflow/domain/model"
	"github.com/flowbase-io/flowbase/pkg/expression"
)

// WorkflowSource fetches workflow definitions for sub-workflow
// recursion and custom executors.
type WorkflowSource interface {
	GetByID(ctx context.Context, id string) (*wfmodel.Workflow, error)
}

// Engine is safe for concurrent use; each Execute call owns its own
// context maps and journal records.
type Engine struct {
	workflows WorkflowSource
	registry  *runtime.Registry
	evaluator *expression.Evaluator
	cfg       config.EngineConfig
	log       logger.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func New(
	workflows WorkflowSource,
	registry *runtime.Registry,
	evaluator *expression.Evaluator,
	cfg config.EngineConfig,
	log logger.Logger,
	m *metrics.Metrics,
	tracer trace.Tracer,
) *Engine {
	return &Engine{
		workflows: workflows,
		registry:  registry,
		evaluator: evaluator,
		cfg:       cfg,
		log:       log,
		metrics:   m,
		tracer:    tracer,
	}
}

// Runner adapts the engine into the registry's workflow runner so
// custom executors can invoke stored workflows.
func (e *Engine) Runner(journal execrepo.Journal) runtime.WorkflowRunner {
	return func(ctx context.Context, workflowID string, parameters, cfg map[string]interface{}) (interface{}, error) {
		wf, err := e.workflows.GetByID(ctx, workflowID)
		if err != nil {
			return nil, wrapError(ErrSubWorkflow, err, "workflow execution failed for workflow_id '%s': %v", workflowID, err)
		}
		exec := newExecution(wf.ID, "", parameters, cfg)
		if err := journal.CreateExecution(ctx, exec); err != nil {
			return nil, err
		}
		return e.run(ctx, journal, wf, exec, nil)
	}
}

// Execute runs one execution to a terminal state. The execution record
// must already exist in the journal with status pending. A non-nil sink
// switches streaming on.
func (e *Engine) Execute(ctx context.Context, journal execrepo.Journal, wf *wfmodel.Workflow, exec *execmodel.Execution, sink Sink) (interface{}, error) {
	var stream *streamContext
	if sink != nil {
		stream = &streamContext{
			sink:        sink,
			executionID: exec.ID,
			workflowID:  wf.ID,
			path:        []string{},
		}
	}
	return e.run(ctx, journal, wf, exec, stream)
}

func (e *Engine) run(ctx context.Context, journal execrepo.Journal, wf *wfmodel.Workflow, exec *execmodel.Execution, stream *streamContext) (result interface{}, err error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "engine.run")
		defer span.End()
	}

	start := time.Now()
	iterations := 0
	e.metrics.ExecutionStarted()
	defer func() {
		status := string(execmodel.StatusCompleted)
		if err != nil {
			status = string(execmodel.StatusFailed)
		}
		e.metrics.ExecutionFinished(status, time.Since(start), iterations)
	}()

	if stream != nil && e.cfg.MaxDepth > 0 && stream.depth > e.cfg.MaxDepth {
		err = newError(ErrSubWorkflow, "sub-workflow depth exceeded maximum (%d)", e.cfg.MaxDepth)
		e.failExecution(ctx, journal, exec, stream, nil, err)
		return nil, err
	}

	if vErr := wf.Validate(); vErr != nil {
		err = wrapError(ErrValidation, vErr, "%s", vErr.Error())
		e.failExecution(ctx, journal, exec, stream, nil, err)
		return nil, err
	}

	parameters := orEmptyMap(exec.Parameters)
	configVars := orEmptyMap(exec.Config)
	state := copyMap(wf.State)
	parent := make(map[string]interface{})

	nodes := wf.NodeIndex()
	edges := wf.EdgeIndex()
	maxIterations := wf.Iterations()

	if tErr := exec.Transition(execmodel.StatusRunning); tErr != nil {
		return nil, tErr
	}
	if uErr := journal.UpdateExecution(ctx, exec); uErr != nil {
		return nil, uErr
	}
	stream.emit(ctx, Event{Type: EventWorkflowStart, Data: map[string]interface{}{
		"parameters": parameters,
	}})

	current := wf.StartNode
	for {
		if cErr := ctx.Err(); cErr != nil {
			err = wrapError(ErrCancelled, cErr, "execution cancelled: %v", cErr)
			e.failExecution(ctx, journal, exec, stream, nil, err)
			return nil, err
		}
		if iterations >= maxIterations {
			err = newError(ErrIterationLimit, "workflow execution exceeded maximum iterations (%d)", maxIterations)
			e.failExecution(ctx, journal, exec, stream, nil, err)
			return nil, err
		}
		iterations++

		node, ok := nodes[current]
		if !ok {
			err = newError(ErrGraphNavigation, "node not found during execution: %s", current)
			e.failExecution(ctx, journal, exec, stream, nil, err)
			return nil, err
		}

		output, visitErr := e.visitNode(ctx, journal, exec, stream, node, parameters, configVars, state, parent)
		if visitErr != nil {
			err = visitErr
			e.failExecution(ctx, journal, exec, stream, nil, err)
			return nil, err
		}
		parent[node.ID] = output

		if current == wf.EndNode {
			break
		}

		next, edgeErr := e.nextNode(current, edges, nodes, parameters, configVars, state, parent)
		if edgeErr != nil {
			err = edgeErr
			e.failExecution(ctx, journal, exec, stream, nil, err)
			return nil, err
		}
		current = next
	}

	result = parent[wf.EndNode]
	if cErr := exec.Complete(result); cErr != nil {
		return nil, cErr
	}
	if uErr := journal.UpdateExecution(ctx, exec); uErr != nil {
		return nil, uErr
	}
	stream.emit(ctx, Event{Type: EventWorkflowComplete, Data: map[string]interface{}{
		"result": result,
	}})
	e.log.Info("workflow execution completed",
		"workflow_id", wf.ID, "execution_id", exec.ID, "iterations", iterations)
	return result, nil
}

// visitNode performs one node visit: journal entry, config expansion,
// dispatch, setState, and the terminal journal update.
func (e *Engine) visitNode(
	ctx context.Context,
	journal execrepo.Journal,
	exec *execmodel.Execution,
	stream *streamContext,
	node wfmodel.Node,
	parameters, configVars, state, parent map[string]interface{},
) (interface{}, error) {
	ne := &execmodel.NodeExecution{
		ID:          uuid.New().String(),
		ExecutionID: exec.ID,
		NodeID:      node.ID,
		Status:      execmodel.StatusRunning,
		CreatedAt:   time.Now().UTC(),
	}
	if err := journal.CreateNodeExecution(ctx, ne); err != nil {
		return nil, err
	}
	stream.emit(ctx, Event{Type: EventNodeStart, NodeID: node.ID, NodeType: node.Type})

	started := time.Now()
	output, err := e.dispatch(ctx, journal, exec, stream, node, parameters, configVars, state, parent)
	if err == nil {
		err = e.applyStateRules(ctx, stream, node, output, parameters, configVars, state, parent)
	}
	duration := time.Since(started)

	if err != nil {
		ne.Fail(err.Error())
		if uErr := journal.UpdateNodeExecution(ctx, ne); uErr != nil {
			e.log.Error("failed to record node failure", "node_id", node.ID, "error", uErr)
		}
		e.metrics.NodeExecuted(node.Type, string(execmodel.StatusFailed), duration)
		return nil, err
	}

	ne.Complete(output)
	if uErr := journal.UpdateNodeExecution(ctx, ne); uErr != nil {
		return nil, uErr
	}
	e.metrics.NodeExecuted(node.Type, string(execmodel.StatusCompleted), duration)

	if node.Streaming.EmitOnComplete() {
		stream.emit(ctx, Event{
			Type: EventNodeComplete, NodeID: node.ID, NodeType: node.Type,
			Data:     output,
			Metadata: map[string]interface{}{"duration_ms": duration.Milliseconds()},
		})
	}
	return output, nil
}

// dispatch expands the node config and runs the node: either the
// reserved sub-workflow type, handled here, or an executor resolved
// through the registry.
func (e *Engine) dispatch(
	ctx context.Context,
	journal execrepo.Journal,
	exec *execmodel.Execution,
	stream *streamContext,
	node wfmodel.Node,
	parameters, configVars, state, parent map[string]interface{},
) (interface{}, error) {
	templateCtx := buildContext(parameters, configVars, state, parent)
	parsedConfig, err := e.evaluator.ParseMap(orEmptyMap(node.Config), templateCtx)
	if err != nil {
		return nil, wrapError(ErrTemplate, err, "failed to expand config for node '%s': %v", node.ID, err)
	}

	if node.Type == wfmodel.WorkflowTypeExecutor {
		return e.runSubWorkflow(ctx, journal, exec, stream, node, parsedConfig)
	}

	executor, err := e.registry.Resolve(ctx, node.Type)
	if err != nil {
		return nil, wrapError(ErrExecutor, err, "%s", err.Error())
	}

	input := runtime.Input{
		Parameters: parameters,
		Config:     configVars,
		State:      state,
		Parent:     parent,
	}
	if stream != nil {
		input.Streaming = &runtime.StreamMeta{
			ExecutionID: stream.executionID,
			Depth:       stream.depth,
			Path:        stream.path,
		}
	}

	if e.cfg.NodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.NodeTimeout)
		defer cancel()
	}

	var output interface{}
	streamer, streams := executor.(runtime.StreamingExecutor)
	if stream != nil && node.StreamEnabled() && streams {
		output, err = streamer.ExecuteStream(ctx, parsedConfig, input, func(chunk interface{}) {
			stream.emit(ctx, Event{Type: EventNodeChunk, NodeID: node.ID, NodeType: node.Type, Data: chunk})
		})
	} else {
		output, err = executor.Execute(ctx, parsedConfig, input)
	}
	if err != nil {
		return nil, wrapError(ErrExecutor, err, "node '%s' execution failed: %v", node.ID, err)
	}
	return output, nil
}

// runSubWorkflow recurses into a referenced workflow. The node's
// expanded config must carry workflow_id and parameters; the caller's
// config snapshot is inherited.
func (e *Engine) runSubWorkflow(
	ctx context.Context,
	journal execrepo.Journal,
	exec *execmodel.Execution,
	stream *streamContext,
	node wfmodel.Node,
	parsedConfig map[string]interface{},
) (interface{}, error) {
	workflowID, _ := parsedConfig["workflow_id"].(string)
	if workflowID == "" {
		return nil, newError(ErrExecutor, "workflow_executor node '%s' requires 'workflow_id' in config", node.ID)
	}
	rawParams, ok := parsedConfig["parameters"]
	if !ok {
		return nil, newError(ErrExecutor, "workflow_executor node '%s' requires 'parameters' in config", node.ID)
	}
	subParams, ok := rawParams.(map[string]interface{})
	if !ok {
		return nil, newError(ErrExecutor, "workflow_executor node '%s' parameters must be a mapping", node.ID)
	}

	subWf, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, wrapError(ErrSubWorkflow, err, "workflow execution failed for workflow_id '%s': %v", workflowID, err)
	}

	subExec := newExecution(subWf.ID, exec.ID, subParams, exec.Config)
	if err := journal.CreateExecution(ctx, subExec); err != nil {
		return nil, err
	}

	output, err := e.run(ctx, journal, subWf, subExec, stream.child(subExec.ID, subWf.ID, node.ID))
	if err != nil {
		return nil, wrapError(ErrSubWorkflow, err, "workflow execution failed for workflow_id '%s': %v", workflowID, err)
	}
	return output, nil
}

// applyStateRules evaluates the node's setState rules with the output
// bound, staging all results and committing only when every rule
// succeeds.
func (e *Engine) applyStateRules(
	ctx context.Context,
	stream *streamContext,
	node wfmodel.Node,
	output interface{},
	parameters, configVars, state, parent map[string]interface{},
) error {
	if len(node.SetState) == 0 {
		return nil
	}

	ruleCtx := buildContext(parameters, configVars, state, parent)
	ruleCtx["output"] = output

	staged := make(map[string]interface{}, len(node.SetState))
	for _, sr := range node.SetState {
		value, err := e.evaluator.Run(sr.Rule, ruleCtx)
		if err != nil {
			return wrapError(ErrStateUpdate, err, "failed to execute setState for key '%s': %v", sr.Key, err)
		}
		staged[sr.Key] = value
	}
	for key, value := range staged {
		state[key] = value
	}

	stream.emit(ctx, Event{Type: EventStateUpdated, NodeID: node.ID, NodeType: node.Type, Data: copyMap(state)})
	return nil
}

// nextNode resolves the outgoing edge of the current node to the next
// node id.
func (e *Engine) nextNode(
	current string,
	edges map[string]wfmodel.Edge,
	nodes map[string]wfmodel.Node,
	parameters, configVars, state, parent map[string]interface{},
) (string, error) {
	edge, ok := edges[current]
	if !ok {
		return "", newError(ErrGraphNavigation, "no outgoing edge found from '%s'", current)
	}

	if edge.IsStatic() {
		return edge.To, nil
	}

	edgeCtx := buildContext(parameters, configVars, state, parent)

	if len(edge.Rule) > 0 {
		result, err := e.evaluator.Run(edge.Rule, edgeCtx)
		if err != nil {
			return "", wrapError(ErrTemplate, err, "failed to evaluate dynamic edge '%s': %v", edge.ID, err)
		}
		target, isString := result.(string)
		if _, exists := nodes[target]; !isString || !exists {
			return "", newError(ErrGraphNavigation, "dynamic edge '%s' returned invalid node ID '%v'", edge.ID, result)
		}
		return target, nil
	}

	for _, cond := range edge.Conditions {
		if cond.Condition == "" {
			return e.requireNode(edge.ID, cond.Node, nodes)
		}
		value, err := e.evaluator.Eval(cond.Condition, edgeCtx)
		if err != nil {
			return "", wrapError(ErrTemplate, err, "failed to evaluate dynamic edge '%s': %v", edge.ID, err)
		}
		if expression.Truthy(value) {
			return e.requireNode(edge.ID, cond.Node, nodes)
		}
	}
	return "", newError(ErrGraphNavigation, "no condition matched for dynamic edge '%s'", edge.ID)
}

func (e *Engine) requireNode(edgeID, target string, nodes map[string]wfmodel.Node) (string, error) {
	if _, exists := nodes[target]; !exists {
		return "", newError(ErrGraphNavigation, "dynamic edge '%s' returned invalid node ID '%v'", edgeID, target)
	}
	return target, nil
}

// failExecution records the terminal failure and emits the error event.
func (e *Engine) failExecution(ctx context.Context, journal execrepo.Journal, exec *execmodel.Execution, stream *streamContext, ne *execmodel.NodeExecution, cause error) {
	if ne != nil && !ne.Status.Terminal() {
		ne.Fail(cause.Error())
		if err := journal.UpdateNodeExecution(ctx, ne); err != nil {
			e.log.Error("failed to record node failure", "node_execution_id", ne.ID, "error", err)
		}
	}
	if !exec.Status.Terminal() {
		if err := exec.Fail(cause.Error()); err == nil {
			if uErr := journal.UpdateExecution(ctx, exec); uErr != nil {
				e.log.Error("failed to record execution failure", "execution_id", exec.ID, "error", uErr)
			}
		}
	}
	stream.emit(ctx, Event{Type: EventError, Data: map[string]interface{}{"message": cause.Error()}})
	e.log.Error("workflow execution failed",
		"workflow_id", exec.WorkflowID, "execution_id", exec.ID, "error", cause.Error())
}

// NewExecution creates a pending execution record for a workflow run.
func NewExecution(workflowID string, parameters, configVars map[string]interface{}) *execmodel.Execution {
	return newExecution(workflowID, "", parameters, configVars)
}

func newExecution(workflowID, parentID string, parameters, configVars map[string]interface{}) *execmodel.Execution {
	return &execmodel.Execution{
		ID:                uuid.New().String(),
		WorkflowID:        workflowID,
		ParentExecutionID: parentID,
		Status:            execmodel.StatusPending,
		Parameters:        parameters,
		Config:            configVars,
		CreatedAt:         time.Now().UTC(),
	}
}

func buildContext(parameters, configVars, state, parent map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"parameters": parameters,
		"config":     configVars,
		"state":      state,
		"parent":     parent,
	}
}

func orEmptyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	copied := make(map[string]interface{}, len(m))
	for k, v := range m {
		copied[k] = v
	}
	return copied
}
