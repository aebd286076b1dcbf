package trace

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migdalzone/tracecap/internal/llmobs"
)

func part(tr types.Trace) types.TracePart {
	return types.TracePart{
		AgentId: aws.String("AGENT123"),
		Trace:   tr,
	}
}

func orchestration(m types.OrchestrationTrace) types.TracePart {
	return part(&types.TraceMemberOrchestrationTrace{Value: m})
}

func TestClassify_PreProcessingInput(t *testing.T) {
	ev, ok := Classify(part(&types.TraceMemberPreProcessingTrace{
		Value: &types.PreProcessingTraceMemberModelInvocationInput{
			Value: types.ModelInvocationInput{
				Text:            aws.String("validate this"),
				FoundationModel: aws.String("anthropic.claude-3"),
			},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, KindPreProcessing, ev.Kind)
	assert.Equal(t, llmobs.KindTask, ev.Span)
	assert.Equal(t, "preprocessing-validation", ev.Name)
	assert.Equal(t, "validate this", ev.Input)
	assert.Equal(t, "anthropic.claude-3", ev.Metadata["foundation_model"])
	assert.Equal(t, "AGENT123", ev.Tags["agent_name"])
}

func TestClassify_PreProcessingOutputWithUsage(t *testing.T) {
	ev, ok := Classify(part(&types.TraceMemberPreProcessingTrace{
		Value: &types.PreProcessingTraceMemberModelInvocationOutput{
			Value: types.PreProcessingModelInvocationOutput{
				ParsedResponse: &types.PreProcessingParsedResponse{
					IsValid:   aws.Bool(false),
					Rationale: aws.String("out of scope"),
				},
				Metadata: &types.Metadata{
					Usage: &types.Usage{
						InputTokens:  aws.Int32(120),
						OutputTokens: aws.Int32(15),
					},
				},
			},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, "preprocessing-validation", ev.Name)
	assert.Equal(t, "Valid: false, Rationale: out of scope", ev.Output)
	assert.Equal(t, false, ev.Metadata["is_valid"])
	assert.Equal(t, "false", ev.Tags["valid_input"])
	usage, isMap := ev.Metadata["usage"].(map[string]any)
	require.True(t, isMap)
	assert.Equal(t, int32(120), usage["input_tokens"])
	assert.Equal(t, int32(15), usage["output_tokens"])
}

func TestClassify_Rationale(t *testing.T) {
	p := orchestration(&types.OrchestrationTraceMemberRationale{
		Value: types.Rationale{Text: aws.String("The user asks about open tasks")},
	})
	p.CollaboratorName = aws.String("task-agent")

	ev, ok := Classify(p)
	require.True(t, ok)
	assert.Equal(t, KindOrchestration, ev.Kind)
	assert.Equal(t, llmobs.KindAgent, ev.Span)
	assert.Equal(t, "reasoning-agent-task-agent", ev.Name)
	assert.Equal(t, "The user asks about open tasks", ev.Output)
	assert.Equal(t, "true", ev.Tags["has_collaborator"])
	assert.Equal(t, "AGENT123", ev.Metadata["agent_id"])
}

func TestClassify_ActionGroupInvocation(t *testing.T) {
	ev, ok := Classify(orchestration(&types.OrchestrationTraceMemberInvocationInput{
		Value: types.InvocationInput{
			InvocationType: types.InvocationTypeActionGroup,
			ActionGroupInvocationInput: &types.ActionGroupInvocationInput{
				ActionGroupName: aws.String("tasks-api"),
				ApiPath:         aws.String("/tasks/count"),
				Verb:            aws.String("GET"),
				Parameters: []types.Parameter{
					{Name: aws.String("status"), Type: aws.String("string"), Value: aws.String("open")},
				},
			},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, llmobs.KindTool, ev.Span)
	assert.Equal(t, "action-tasks-api", ev.Name)
	assert.Contains(t, ev.Input, "GET /tasks/count")
	assert.Contains(t, ev.Input, `"status"`)
	assert.Equal(t, 1, ev.Metadata["parameters_count"])
	assert.Equal(t, "GET", ev.Tags["api_method"])
}

func TestClassify_ActionGroupNoParameters(t *testing.T) {
	ev, ok := Classify(orchestration(&types.OrchestrationTraceMemberInvocationInput{
		Value: types.InvocationInput{
			InvocationType: types.InvocationTypeActionGroup,
			ActionGroupInvocationInput: &types.ActionGroupInvocationInput{
				ActionGroupName: aws.String("tasks-api"),
			},
		},
	}))
	require.True(t, ok)
	assert.Contains(t, ev.Input, "No parameters")
}

func TestClassify_KnowledgeBaseQuery(t *testing.T) {
	ev, ok := Classify(orchestration(&types.OrchestrationTraceMemberInvocationInput{
		Value: types.InvocationInput{
			InvocationType: types.InvocationTypeKnowledgeBase,
			KnowledgeBaseLookupInput: &types.KnowledgeBaseLookupInput{
				KnowledgeBaseId: aws.String("KB42"),
				Text:            aws.String("home insurance policies"),
			},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, llmobs.KindRetrieval, ev.Span)
	assert.Equal(t, "knowledge-base-query", ev.Name)
	assert.Equal(t, "home insurance policies", ev.Input)
	assert.Equal(t, "KB42", ev.Tags["knowledge_base_id"])
}

func TestClassify_CollaboratorInvocation(t *testing.T) {
	ev, ok := Classify(orchestration(&types.OrchestrationTraceMemberInvocationInput{
		Value: types.InvocationInput{
			InvocationType: types.InvocationTypeAgentCollaborator,
			AgentCollaboratorInvocationInput: &types.AgentCollaboratorInvocationInput{
				AgentCollaboratorName: aws.String("policy-agent"),
				Input:                 &types.AgentCollaboratorInputPayload{Text: aws.String("check policies")},
			},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, llmobs.KindAgent, ev.Span)
	assert.Equal(t, "collaborator-policy-agent", ev.Name)
	assert.Equal(t, "check policies", ev.Input)
}

func TestClassify_ActionGroupResponseFormatsJSON(t *testing.T) {
	ev, ok := Classify(orchestration(&types.OrchestrationTraceMemberObservation{
		Value: types.Observation{
			Type: types.TypeActionGroup,
			ActionGroupInvocationOutput: &types.ActionGroupInvocationOutput{
				Text: aws.String(`{"count":5}`),
			},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, "action-group-response", ev.Name)
	assert.Equal(t, "json", ev.Metadata["response_type"])
	assert.Contains(t, ev.Output, "\"count\": 5")
}

func TestClassify_KnowledgeBaseRetrieval(t *testing.T) {
	ev, ok := Classify(orchestration(&types.OrchestrationTraceMemberObservation{
		Value: types.Observation{
			Type: types.TypeKnowledgeBase,
			KnowledgeBaseLookupOutput: &types.KnowledgeBaseLookupOutput{
				RetrievedReferences: []types.RetrievedReference{
					{
						Content: &types.RetrievalResultContent{Text: aws.String("policy doc text")},
						Location: &types.RetrievalResultLocation{
							S3Location: &types.RetrievalResultS3Location{Uri: aws.String("s3://docs/policy.pdf")},
						},
					},
					{Content: &types.RetrievalResultContent{Text: aws.String("")}},
				},
			},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, llmobs.KindRetrieval, ev.Span)
	assert.Equal(t, "knowledge-base-retrieval", ev.Name)
	// Empty references are skipped in the document list but still counted.
	assert.Contains(t, ev.Output, `"id":"doc_1"`)
	assert.NotContains(t, ev.Output, "doc_2")
	assert.Contains(t, ev.Output, "s3://docs/policy.pdf")
	assert.Equal(t, 2, ev.Metadata["references_count"])
	assert.Equal(t, "2", ev.Tags["references_found"])
}

func TestClassify_FinishObservation(t *testing.T) {
	ev, ok := Classify(orchestration(&types.OrchestrationTraceMemberObservation{
		Value: types.Observation{
			Type:          types.TypeFinish,
			FinalResponse: &types.FinalResponse{Text: aws.String("יש לך 5 משימות פתוחות")},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, llmobs.KindLLM, ev.Span)
	assert.Equal(t, "final-response-generator", ev.Name)
	assert.Equal(t, "יש לך 5 משימות פתוחות", ev.Output)
	assert.Equal(t, true, ev.Metadata["is_final"])
}

func TestClassify_CollaboratorResponse(t *testing.T) {
	ev, ok := Classify(orchestration(&types.OrchestrationTraceMemberObservation{
		Value: types.Observation{
			Type: types.TypeAgentCollaborator,
			AgentCollaboratorInvocationOutput: &types.AgentCollaboratorInvocationOutput{
				AgentCollaboratorName: aws.String("policy-agent"),
				Output:                &types.AgentCollaboratorOutputPayload{Text: aws.String("3 valid policies")},
			},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, "collaborator-response-policy-agent", ev.Name)
	assert.Equal(t, "3 valid policies", ev.Output)
}

func TestClassify_Reprompt(t *testing.T) {
	ev, ok := Classify(orchestration(&types.OrchestrationTraceMemberObservation{
		Value: types.Observation{
			Type: types.TypeReprompt,
			RepromptResponse: &types.RepromptResponse{
				Source: types.SourceParser,
				Text:   aws.String("please rephrase"),
			},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, "clarification-agent", ev.Name)
	assert.Equal(t, "please rephrase", ev.Output)
}

func TestClassify_PostProcessingOutput(t *testing.T) {
	ev, ok := Classify(part(&types.TraceMemberPostProcessingTrace{
		Value: &types.PostProcessingTraceMemberModelInvocationOutput{
			Value: types.PostProcessingModelInvocationOutput{
				ParsedResponse: &types.PostProcessingParsedResponse{Text: aws.String("polished answer")},
			},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, KindPostProcessing, ev.Kind)
	assert.Equal(t, "response-postprocessing", ev.Name)
	assert.Equal(t, "polished answer", ev.Output)
}

func TestClassify_GuardrailIntervened(t *testing.T) {
	ev, ok := Classify(part(&types.TraceMemberGuardrailTrace{
		Value: types.GuardrailTrace{
			Action:           types.GuardrailActionIntervened,
			InputAssessments: []types.GuardrailAssessment{{}},
		},
	}))
	require.True(t, ok)
	assert.Equal(t, KindGuardrail, ev.Kind)
	assert.Equal(t, "guardrail-assessment", ev.Name)
	assert.Equal(t, "Action taken: INTERVENED", ev.Output)
	assert.Equal(t, true, ev.Metadata["intervention"])
	assert.Equal(t, 1, ev.Metadata["input_assessments"])
}

func TestClassify_Failure(t *testing.T) {
	ev, ok := Classify(part(&types.TraceMemberFailureTrace{
		Value: types.FailureTrace{FailureReason: aws.String("access denied")},
	}))
	require.True(t, ok)
	assert.Equal(t, KindFailure, ev.Kind)
	assert.Equal(t, "error-handler", ev.Name)
	assert.Equal(t, "Failure: access denied", ev.Output)
	assert.Equal(t, "true", ev.Tags["error"])
}

func TestClassify_UnknownVariantIsUnclassified(t *testing.T) {
	ev, ok := Classify(part(&types.TraceMemberCustomOrchestrationTrace{}))
	require.True(t, ok)
	assert.Equal(t, KindUnclassified, ev.Kind)
	assert.Equal(t, "unclassified-trace", ev.Name)
	assert.Equal(t, "unclassified", ev.Tags["trace_type"])
}

func TestClassify_ModelInvocationContinuationYieldsNoEvent(t *testing.T) {
	_, ok := Classify(orchestration(&types.OrchestrationTraceMemberModelInvocationInput{
		Value: types.ModelInvocationInput{Text: aws.String("prompt")},
	}))
	assert.False(t, ok)

	_, ok = Classify(orchestration(&types.OrchestrationTraceMemberModelInvocationOutput{
		Value: types.OrchestrationModelInvocationOutput{},
	}))
	assert.False(t, ok)
}

func TestClassify_AgentLabelFallbacks(t *testing.T) {
	rationale := func() types.Trace {
		return &types.TraceMemberOrchestrationTrace{
			Value: &types.OrchestrationTraceMemberRationale{
				Value: types.Rationale{Text: aws.String("r")},
			},
		}
	}

	ev, ok := Classify(types.TracePart{Trace: rationale(), AgentId: aws.String("AGENT123")})
	require.True(t, ok)
	assert.Equal(t, "reasoning-agent-AGENT123", ev.Name)

	ev, ok = Classify(types.TracePart{Trace: rationale()})
	require.True(t, ok)
	assert.Equal(t, "reasoning-agent-unknown", ev.Name)
}

func TestFinalResponse(t *testing.T) {
	finish := orchestration(&types.OrchestrationTraceMemberObservation{
		Value: types.Observation{
			Type:          types.TypeFinish,
			FinalResponse: &types.FinalResponse{Text: aws.String("done")},
		},
	})
	text, ok := FinalResponse(finish)
	require.True(t, ok)
	assert.Equal(t, "done", text)

	_, ok = FinalResponse(orchestration(&types.OrchestrationTraceMemberRationale{
		Value: types.Rationale{Text: aws.String("thinking")},
	}))
	assert.False(t, ok)

	_, ok = FinalResponse(types.TracePart{})
	assert.False(t, ok)
}
