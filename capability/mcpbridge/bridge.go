package mcpbridge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/codemode/capability"
)

// Errors returned by source connection and discovery.
var (
	ErrSourceUnavailable = errors.New("bridged source unavailable")
	ErrBadSpec           = errors.New("invalid source spec")
)

const (
	clientName    = "codemode"
	clientVersion = "dev"

	stdioSchemePrefix = "stdio://"
)

// SourceConfig identifies one external MCP server.
type SourceConfig struct {
	// Name is the namespace prefix for every tool this source provides.
	Name string

	// Spec selects the transport: "stdio://cmd args" launches a
	// subprocess, "http://" / "https://" dials SSE, "http+stream://"
	// dials the streamable HTTP transport. A bare command string falls
	// back to stdio.
	Spec string
}

// Source is a connected MCP server whose tools have been snapshotted into
// capability descriptors.
type Source struct {
	name    string
	session *mcp.ClientSession
	caps    []capability.Descriptor
}

// Connect dials the source, snapshots its tool list, and wraps each tool
// into a bridged capability descriptor. The caller owns the returned
// Source and must Close it when the session ends.
func Connect(ctx context.Context, cfg SourceConfig) (*Source, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: source name is required", ErrBadSpec)
	}

	transport, err := buildTransport(ctx, cfg.Spec)
	if err != nil {
		return nil, err
	}
	return ConnectTransport(ctx, cfg.Name, transport)
}

// ConnectTransport is Connect with an already-built transport. Useful for
// in-memory servers and tests.
func ConnectTransport(ctx context.Context, name string, transport mcp.Transport) (*Source, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: source name is required", ErrBadSpec)
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, name, err)
	}

	src := &Source{name: name, session: session}
	if err := src.snapshot(ctx); err != nil {
		_ = session.Close()
		return nil, err
	}
	return src, nil
}

// Name returns the source's namespace prefix.
func (s *Source) Name() string {
	return s.name
}

// Descriptors returns the bridged capabilities discovered at connect time.
func (s *Source) Descriptors() []capability.Descriptor {
	return append([]capability.Descriptor(nil), s.caps...)
}

// Close releases the underlying MCP session.
func (s *Source) Close() error {
	if s == nil || s.session == nil {
		return nil
	}
	return s.session.Close()
}

// snapshot lists the server's tools and builds one descriptor per tool,
// namespacing names as "<source>:<tool>".
func (s *Source) snapshot(ctx context.Context) error {
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return fmt.Errorf("%w: %s: list tools: %v", ErrSourceUnavailable, s.name, err)
		}
		if tool == nil {
			continue
		}

		namespaced := *tool
		namespaced.Name = FormatName(s.name, tool.Name)
		remote := tool.Name

		s.caps = append(s.caps, capability.Descriptor{
			Tool: model.Tool{
				Tool:      namespaced,
				Namespace: s.name,
			},
			Origin:  capability.OriginBridged,
			Source:  s.name,
			Execute: s.executor(remote),
		})
	}
	return nil
}

// executor wraps one remote tool into the uniform calling convention.
// The heterogeneous MCP result shape is normalized to an Outcome map
// before it reaches the evaluator; call-level failures come back as
// failed outcomes, not Go errors, so scripts control propagation.
func (s *Source) executor(remote string) capability.HandlerFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		if args == nil {
			args = map[string]any{}
		}
		res, err := s.session.CallTool(ctx, &mcp.CallToolParams{
			Name:      remote,
			Arguments: args,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return Failure(err).AsMap(), nil
		}
		return Normalize(res).AsMap(), nil
	}
}

// FormatName builds the namespaced registry key for a bridged tool.
func FormatName(source, tool string) string {
	if source == "" {
		return tool
	}
	return fmt.Sprintf("%s:%s", source, tool)
}

func buildTransport(ctx context.Context, spec string) (mcp.Transport, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("%w: spec is empty", ErrBadSpec)
	}

	lowered := strings.ToLower(spec)
	switch {
	case strings.HasPrefix(lowered, stdioSchemePrefix):
		return buildStdioTransport(ctx, spec[len(stdioSchemePrefix):])
	case strings.HasPrefix(lowered, "http+stream://"):
		endpoint, err := normalizeHTTPURL("http://" + spec[len("http+stream://"):])
		if err != nil {
			return nil, err
		}
		return &mcp.StreamableClientTransport{Endpoint: endpoint}, nil
	case strings.HasPrefix(lowered, "https+stream://"):
		endpoint, err := normalizeHTTPURL("https://" + spec[len("https+stream://"):])
		if err != nil {
			return nil, err
		}
		return &mcp.StreamableClientTransport{Endpoint: endpoint}, nil
	case strings.HasPrefix(lowered, "http://"), strings.HasPrefix(lowered, "https://"):
		endpoint, err := normalizeHTTPURL(spec)
		if err != nil {
			return nil, err
		}
		return &mcp.SSEClientTransport{Endpoint: endpoint}, nil
	}

	return buildStdioTransport(ctx, spec)
}

func buildStdioTransport(ctx context.Context, cmdSpec string) (mcp.Transport, error) {
	parts := strings.Fields(strings.TrimSpace(cmdSpec))
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: stdio command is empty", ErrBadSpec)
	}
	command := exec.CommandContext(ctx, parts[0], parts[1:]...) // #nosec G204
	return &mcp.CommandTransport{Command: command}, nil
}

func normalizeHTTPURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSpec, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrBadSpec)
	}
	return parsed.String(), nil
}
