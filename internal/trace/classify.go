// Package trace classifies Bedrock agent trace parts into span-ready events.
//
// Classification is a flat mapping from the SDK's trace union members to a
// fixed set of kinds, with per-kind content extraction. Missing fields yield
// empty content; nothing here returns an error, because a malformed trace is
// a data-quality problem upstream, not a failure of the harness.
package trace

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/migdalzone/tracecap/internal/llmobs"
	"github.com/migdalzone/tracecap/internal/textutil"
)

// Kind identifies which Bedrock trace family an event came from.
type Kind string

const (
	KindPreProcessing  Kind = "preprocessing"
	KindOrchestration  Kind = "orchestration"
	KindPostProcessing Kind = "postprocessing"
	KindGuardrail      Kind = "guardrail"
	KindFailure        Kind = "failure"

	// KindUnclassified covers trace variants the mapping does not know.
	// Unknown input never fails classification.
	KindUnclassified Kind = "unclassified"
)

// Event is one classified trace occurrence, carrying everything the span
// emitter needs: the span kind and name, textual content, and the
// metadata/tag maps that annotate the span.
type Event struct {
	Kind     Kind
	Span     llmobs.SpanKind
	Name     string
	Input    string
	Output   string
	Metadata map[string]any
	Tags     map[string]string
}

// Classify maps one trace part to zero or one Event. Parts that carry no
// actionable content (model invocation continuations inside the
// orchestration union) yield none.
func Classify(part types.TracePart) (Event, bool) {
	agent := agentLabel(part)

	switch tr := part.Trace.(type) {
	case *types.TraceMemberPreProcessingTrace:
		return classifyPreProcessing(tr.Value, agent)
	case *types.TraceMemberOrchestrationTrace:
		return classifyOrchestration(tr.Value, part, agent)
	case *types.TraceMemberPostProcessingTrace:
		return classifyPostProcessing(tr.Value, agent)
	case *types.TraceMemberGuardrailTrace:
		return classifyGuardrail(tr.Value), true
	case *types.TraceMemberFailureTrace:
		return classifyFailure(tr.Value), true
	default:
		return Event{
			Kind: KindUnclassified,
			Span: llmobs.KindTask,
			Name: "unclassified-trace",
			Tags: map[string]string{"trace_type": "unclassified", "agent_name": agent},
		}, true
	}
}

// FinalResponse extracts the agent's final answer text when the part is a
// FINISH observation. The final response text is the authoritative answer;
// concatenated chunk bytes are the fallback.
func FinalResponse(part types.TracePart) (string, bool) {
	orch, ok := part.Trace.(*types.TraceMemberOrchestrationTrace)
	if !ok {
		return "", false
	}
	obs, ok := orch.Value.(*types.OrchestrationTraceMemberObservation)
	if !ok {
		return "", false
	}
	if obs.Value.Type != types.TypeFinish || obs.Value.FinalResponse == nil {
		return "", false
	}
	return str(obs.Value.FinalResponse.Text), true
}

func classifyPreProcessing(tr types.PreProcessingTrace, agent string) (Event, bool) {
	switch m := tr.(type) {
	case *types.PreProcessingTraceMemberModelInvocationInput:
		return Event{
			Kind:  KindPreProcessing,
			Span:  llmobs.KindTask,
			Name:  "preprocessing-validation",
			Input: str(m.Value.Text),
			Metadata: map[string]any{
				"step":             "preprocessing",
				"foundation_model": str(m.Value.FoundationModel),
			},
			Tags: map[string]string{"trace_type": "preprocessing", "agent_name": agent},
		}, true
	case *types.PreProcessingTraceMemberModelInvocationOutput:
		isValid := true
		rationale := ""
		if pr := m.Value.ParsedResponse; pr != nil {
			if pr.IsValid != nil {
				isValid = *pr.IsValid
			}
			rationale = str(pr.Rationale)
		}
		md := map[string]any{
			"step":     "preprocessing",
			"is_valid": isValid,
		}
		addUsage(md, m.Value.Metadata)
		return Event{
			Kind:     KindPreProcessing,
			Span:     llmobs.KindTask,
			Name:     "preprocessing-validation",
			Output:   fmt.Sprintf("Valid: %t, Rationale: %s", isValid, rationale),
			Metadata: md,
			Tags: map[string]string{
				"trace_type":  "preprocessing",
				"agent_name":  agent,
				"valid_input": strconv.FormatBool(isValid),
			},
		}, true
	default:
		return Event{}, false
	}
}

func classifyOrchestration(tr types.OrchestrationTrace, part types.TracePart, agent string) (Event, bool) {
	switch m := tr.(type) {
	case *types.OrchestrationTraceMemberRationale:
		text := str(m.Value.Text)
		return Event{
			Kind:   KindOrchestration,
			Span:   llmobs.KindAgent,
			Name:   "reasoning-agent-" + agent,
			Input:  "Analyzing user input and determining next steps",
			Output: text,
			Metadata: map[string]any{
				"step":             "reasoning",
				"reasoning_length": len(text),
				"agent_id":         str(part.AgentId),
				"collaborator":     str(part.CollaboratorName),
			},
			Tags: map[string]string{
				"trace_type":       "rationale",
				"agent_name":       agent,
				"has_collaborator": strconv.FormatBool(part.CollaboratorName != nil && *part.CollaboratorName != ""),
			},
		}, true
	case *types.OrchestrationTraceMemberInvocationInput:
		return classifyInvocationInput(m.Value)
	case *types.OrchestrationTraceMemberObservation:
		return classifyObservation(m.Value)
	default:
		// Model invocation input/output members are continuation signals.
		return Event{}, false
	}
}

func classifyInvocationInput(in types.InvocationInput) (Event, bool) {
	switch in.InvocationType {
	case types.InvocationTypeActionGroup:
		ag := in.ActionGroupInvocationInput
		if ag == nil {
			return Event{}, false
		}
		name := str(ag.ActionGroupName)
		params := formatParameters(ag.Parameters)
		return Event{
			Kind:   KindOrchestration,
			Span:   llmobs.KindTool,
			Name:   "action-" + name,
			Input:  fmt.Sprintf("Calling %s %s with parameters: %s", str(ag.Verb), str(ag.ApiPath), params),
			Output: "Action group invocation initiated",
			Metadata: map[string]any{
				"action_group_name": name,
				"api_path":          str(ag.ApiPath),
				"verb":              str(ag.Verb),
				"parameters_count":  len(ag.Parameters),
				"execution_type":    string(ag.ExecutionType),
			},
			Tags: map[string]string{
				"trace_type":   "action_input",
				"action_group": name,
				"api_method":   str(ag.Verb),
			},
		}, true
	case types.InvocationTypeKnowledgeBase:
		kb := in.KnowledgeBaseLookupInput
		if kb == nil {
			return Event{}, false
		}
		query := str(kb.Text)
		return Event{
			Kind:   KindOrchestration,
			Span:   llmobs.KindRetrieval,
			Name:   "knowledge-base-query",
			Input:  query,
			Output: "Knowledge base query initiated",
			Metadata: map[string]any{
				"knowledge_base_id": str(kb.KnowledgeBaseId),
				"query_length":      len(query),
			},
			Tags: map[string]string{
				"trace_type":        "kb_input",
				"knowledge_base_id": str(kb.KnowledgeBaseId),
			},
		}, true
	case types.InvocationTypeAgentCollaborator:
		collab := in.AgentCollaboratorInvocationInput
		if collab == nil {
			return Event{}, false
		}
		name := str(collab.AgentCollaboratorName)
		input := ""
		if collab.Input != nil {
			input = str(collab.Input.Text)
		}
		return Event{
			Kind:   KindOrchestration,
			Span:   llmobs.KindAgent,
			Name:   "collaborator-" + name,
			Input:  input,
			Output: "Collaborator agent invocation initiated",
			Metadata: map[string]any{
				"collaborator_name": name,
				"collaborator_arn":  str(collab.AgentCollaboratorAliasArn),
				"input_length":      len(input),
			},
			Tags: map[string]string{
				"trace_type":   "collaborator_input",
				"collaborator": name,
			},
		}, true
	default:
		return Event{}, false
	}
}

func classifyObservation(obs types.Observation) (Event, bool) {
	switch obs.Type {
	case types.TypeActionGroup:
		if obs.ActionGroupInvocationOutput == nil {
			return Event{}, false
		}
		raw := str(obs.ActionGroupInvocationOutput.Text)
		responseType := "text"
		if textutil.IsJSONObject(raw) {
			responseType = "json"
		}
		return Event{
			Kind:   KindOrchestration,
			Span:   llmobs.KindTool,
			Name:   "action-group-response",
			Input:  "Action group execution completed",
			Output: textutil.FormatForDisplay(raw),
			Metadata: map[string]any{
				"response_length": len(raw),
				"response_type":   responseType,
			},
			Tags: map[string]string{
				"trace_type":   "action_output",
				"has_response": strconv.FormatBool(raw != ""),
			},
		}, true
	case types.TypeKnowledgeBase:
		if obs.KnowledgeBaseLookupOutput == nil {
			return Event{}, false
		}
		return classifyRetrievedReferences(obs.KnowledgeBaseLookupOutput.RetrievedReferences), true
	case types.TypeAgentCollaborator:
		collab := obs.AgentCollaboratorInvocationOutput
		if collab == nil {
			return Event{}, false
		}
		name := str(collab.AgentCollaboratorName)
		output := ""
		if collab.Output != nil {
			output = str(collab.Output.Text)
		}
		return Event{
			Kind:   KindOrchestration,
			Span:   llmobs.KindAgent,
			Name:   "collaborator-response-" + name,
			Input:  "Response from " + name,
			Output: output,
			Metadata: map[string]any{
				"collaborator_name": name,
				"response_length":   len(output),
			},
			Tags: map[string]string{
				"trace_type":   "collaborator_output",
				"collaborator": name,
			},
		}, true
	case types.TypeFinish:
		if obs.FinalResponse == nil {
			return Event{}, false
		}
		final := str(obs.FinalResponse.Text)
		return Event{
			Kind:   KindOrchestration,
			Span:   llmobs.KindLLM,
			Name:   "final-response-generator",
			Input:  "Generate final response to user",
			Output: final,
			Metadata: map[string]any{
				"is_final":        true,
				"response_length": len(final),
				"model_name":      "bedrock-agent",
				"model_provider":  "aws",
			},
			Tags: map[string]string{
				"trace_type":  "final_response",
				"is_complete": "true",
			},
		}, true
	case types.TypeReprompt:
		if obs.RepromptResponse == nil {
			return Event{}, false
		}
		source := string(obs.RepromptResponse.Source)
		return Event{
			Kind:   KindOrchestration,
			Span:   llmobs.KindAgent,
			Name:   "clarification-agent",
			Input:  "Reprompt needed from " + source,
			Output: str(obs.RepromptResponse.Text),
			Metadata: map[string]any{
				"reprompt_source":        source,
				"requires_clarification": true,
			},
			Tags: map[string]string{
				"trace_type": "reprompt",
				"source":     source,
			},
		}, true
	default:
		return Event{}, false
	}
}

// RetrievedDocument is one knowledge-base hit surfaced into span output.
type RetrievedDocument struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

func classifyRetrievedReferences(refs []types.RetrievedReference) Event {
	docs := make([]RetrievedDocument, 0, len(refs))
	sources := make([]string, 0, len(refs))
	totalLen := 0
	for _, ref := range refs {
		text := ""
		if ref.Content != nil {
			text = str(ref.Content.Text)
		}
		if text == "" {
			continue
		}
		source := ""
		if ref.Location != nil && ref.Location.S3Location != nil {
			source = str(ref.Location.S3Location.Uri)
		}
		docs = append(docs, RetrievedDocument{
			ID:     fmt.Sprintf("doc_%d", len(docs)+1),
			Text:   text,
			Source: source,
		})
		sources = append(sources, source)
		totalLen += len(text)
	}

	output, err := json.Marshal(docs)
	if err != nil {
		output = []byte("[]")
	}
	return Event{
		Kind:   KindOrchestration,
		Span:   llmobs.KindRetrieval,
		Name:   "knowledge-base-retrieval",
		Input:  "Knowledge base search completed",
		Output: string(output),
		Metadata: map[string]any{
			"references_count":     len(refs),
			"total_content_length": totalLen,
			"sources":              sources,
		},
		Tags: map[string]string{
			"trace_type":       "kb_output",
			"references_found": strconv.Itoa(len(refs)),
		},
	}
}

func classifyPostProcessing(tr types.PostProcessingTrace, agent string) (Event, bool) {
	switch m := tr.(type) {
	case *types.PostProcessingTraceMemberModelInvocationInput:
		return Event{
			Kind:  KindPostProcessing,
			Span:  llmobs.KindTask,
			Name:  "response-postprocessing",
			Input: str(m.Value.Text),
			Metadata: map[string]any{
				"step":             "postprocessing",
				"foundation_model": str(m.Value.FoundationModel),
			},
			Tags: map[string]string{"trace_type": "postprocessing", "agent_name": agent},
		}, true
	case *types.PostProcessingTraceMemberModelInvocationOutput:
		output := ""
		if pr := m.Value.ParsedResponse; pr != nil {
			output = str(pr.Text)
		}
		md := map[string]any{"step": "postprocessing"}
		addUsage(md, m.Value.Metadata)
		return Event{
			Kind:     KindPostProcessing,
			Span:     llmobs.KindTask,
			Name:     "response-postprocessing",
			Output:   output,
			Metadata: md,
			Tags:     map[string]string{"trace_type": "postprocessing", "agent_name": agent},
		}, true
	default:
		return Event{}, false
	}
}

func classifyGuardrail(tr types.GuardrailTrace) Event {
	action := string(tr.Action)
	return Event{
		Kind:   KindGuardrail,
		Span:   llmobs.KindTask,
		Name:   "guardrail-assessment",
		Input:  "Guardrail safety assessment",
		Output: "Action taken: " + action,
		Metadata: map[string]any{
			"guardrail_action":   action,
			"intervention":       tr.Action == types.GuardrailActionIntervened,
			"input_assessments":  len(tr.InputAssessments),
			"output_assessments": len(tr.OutputAssessments),
		},
		Tags: map[string]string{
			"trace_type": "guardrail",
			"action":     action,
		},
	}
}

func classifyFailure(tr types.FailureTrace) Event {
	reason := str(tr.FailureReason)
	return Event{
		Kind:   KindFailure,
		Span:   llmobs.KindTask,
		Name:   "error-handler",
		Input:  "Processing failed",
		Output: "Failure: " + reason,
		Metadata: map[string]any{
			"failed":         true,
			"failure_reason": reason,
		},
		Tags: map[string]string{
			"trace_type": "failure",
			"error":      "true",
		},
	}
}

// agentLabel names the agent a trace part belongs to. The stream reports a
// collaborator name for sub-agent parts; otherwise the agent id is the best
// label available.
func agentLabel(part types.TracePart) string {
	if part.CollaboratorName != nil && *part.CollaboratorName != "" {
		return *part.CollaboratorName
	}
	if part.AgentId != nil && *part.AgentId != "" {
		return *part.AgentId
	}
	return "unknown"
}

func formatParameters(params []types.Parameter) string {
	if len(params) == 0 {
		return "No parameters"
	}
	list := make([]map[string]string, 0, len(params))
	for _, p := range params {
		list = append(list, map[string]string{
			"name":  str(p.Name),
			"type":  str(p.Type),
			"value": str(p.Value),
		})
	}
	out, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "No parameters"
	}
	return string(out)
}

// addUsage copies token usage out of model invocation metadata, when the
// provider reported any.
func addUsage(md map[string]any, meta *types.Metadata) {
	if meta == nil || meta.Usage == nil {
		return
	}
	usage := map[string]any{}
	if meta.Usage.InputTokens != nil {
		usage["input_tokens"] = *meta.Usage.InputTokens
	}
	if meta.Usage.OutputTokens != nil {
		usage["output_tokens"] = *meta.Usage.OutputTokens
	}
	if len(usage) > 0 {
		md["usage"] = usage
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
