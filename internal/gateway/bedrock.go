package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/antoniostano/guesser/internal/protocol"
	"github.com/antoniostano/guesser/internal/reliability"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockGateway sends transcripts to the AWS Bedrock Converse API.
type BedrockGateway struct {
	api     bedrockConverseAPI
	modelID string
}

// NewBedrockGatewayFromEnv resolves AWS credentials through the default chain.
func NewBedrockGatewayFromEnv(ctx context.Context, region, modelID string) (*BedrockGateway, error) {
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("bedrock model id is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if r := strings.TrimSpace(region); r != "" {
		opts = append(opts, awsconfig.WithRegion(r))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewBedrockGateway(bedrockruntime.NewFromConfig(awsCfg), modelID), nil
}

func NewBedrockGateway(api bedrockConverseAPI, modelID string) *BedrockGateway {
	return &BedrockGateway{api: api, modelID: strings.TrimSpace(modelID)}
}

func (g *BedrockGateway) Complete(ctx context.Context, transcript []protocol.Turn) (string, error) {
	input, err := bedrockInput(g.modelID, transcript)
	if err != nil {
		return "", upstream("bedrock", reliability.KindMalformed, err)
	}

	out, err := g.api.Converse(ctx, input)
	if err != nil {
		return "", upstream("bedrock", classifyByStatusMethod(err), err)
	}
	text, err := bedrockOutputText(out)
	if err != nil {
		return "", upstream("bedrock", reliability.KindMalformed, err)
	}
	return text, nil
}

func bedrockInput(modelID string, transcript []protocol.Turn) (*bedrockruntime.ConverseInput, error) {
	if len(transcript) == 0 {
		return nil, errEmptyTranscript
	}
	var system []brtypes.SystemContentBlock
	messages := make([]brtypes.Message, 0, len(transcript))
	for _, t := range transcript {
		switch t.Role {
		case protocol.RoleSystem:
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: t.Content})
		case protocol.RoleUser:
			messages = appendBedrockTurn(messages, brtypes.ConversationRoleUser, t.Content)
		case protocol.RoleAssistant:
			messages = appendBedrockTurn(messages, brtypes.ConversationRoleAssistant, t.Content)
		default:
			return nil, fmt.Errorf("unsupported role %q", t.Role)
		}
	}
	return &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		System:   system,
		Messages: messages,
	}, nil
}

// appendBedrockTurn adds content as a new message, or as an extra text block
// of the previous message when it has the same role. Converse requires roles
// to alternate, and a failed submission leaves two user turns in a row.
func appendBedrockTurn(messages []brtypes.Message, role brtypes.ConversationRole, content string) []brtypes.Message {
	block := &brtypes.ContentBlockMemberText{Value: content}
	if n := len(messages); n > 0 && messages[n-1].Role == role {
		messages[n-1].Content = append(messages[n-1].Content, block)
		return messages
	}
	return append(messages, brtypes.Message{
		Role:    role,
		Content: []brtypes.ContentBlock{block},
	})
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", fmt.Errorf("nil output: %w", reliability.ErrMalformedResponse)
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("unexpected output type %T: %w", out.Output, reliability.ErrMalformedResponse)
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text content: %w", reliability.ErrMalformedResponse)
	}
	return b.String(), nil
}
