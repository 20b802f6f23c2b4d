// Package messagegen emits protocol-specialized sender/receiver shim
// source: given a built *message.Protocol, it produces a Go source file
// declaring one typed Send method per message type and one typed
// Register call per message type, so a caller gets compile-time
// checking of the message/response pairing a *message.Protocol only
// checks at runtime. This is the generator half of spec.md's code
// generator component; the runtime half it generates against is
// message.BoundMessageSender/BoundMessageReceiver.
package messagegen

import (
	"bytes"
	"fmt"
	"go/format"
	"text/template"

	"github.com/oasislabs/protorpc/message"
)

// Flags selects which shim(s) to emit. At least one of Sender/Receiver
// must be set.
type Flags struct {
	Sender   bool
	Receiver bool

	// Async additionally emits the context.Context-suspending
	// Send<Type>Async overloads alongside the blocking ones on the
	// sender shim. The receiver shim has no separate async variant.
	Async bool
}

// messageView and responseView are the template-facing projections of
// message.MessageDescriptor / message.ResponseDescriptor; the generator
// never imports application message/response types, so it only ever
// has their id and a caller-supplied Go type name to work with.
type messageView struct {
	ID          int
	GoType      string
	ResponseIDs []int
	ResponseGo  string
	HasResponse bool

	// Polymorphic is set when the message declares more than one
	// non-empty response type. A statically-typed return can't name
	// both, so the generated overload falls back to message.Response,
	// the same interface BoundMessageSender/BoundMessageReceiver use
	// for this case at runtime, and the caller type-switches on it.
	Polymorphic bool
}

type templateData struct {
	Package  string
	Name     string
	Flags    Flags
	Messages []messageView
}

// TypeNames maps a message type id, and (when it produces one) its
// response type id, to the Go type names the generated shim should use.
// Generate fails if a registered message or non-empty response id has
// no entry here.
type TypeNames struct {
	Message  map[int]string
	Response map[int]string
}

// Generate emits Go source for a protocol-specialized shim named
// className in package pkg. The output is deterministic: message ids
// are walked in sorted order (message.Protocol.MessageDescriptors
// already returns them that way) and the result is passed through
// go/format.Source, so two calls with equal inputs produce
// byte-identical text.
func Generate(protocol *message.Protocol, pkg, className string, names TypeNames, flags Flags) (string, error) {
	if !flags.Sender && !flags.Receiver {
		return "", fmt.Errorf("messagegen: at least one of Flags.Sender, Flags.Receiver must be set")
	}

	descriptors := protocol.MessageDescriptors()
	views := make([]messageView, 0, len(descriptors))

	for _, d := range descriptors {
		goType, ok := names.Message[d.ID]
		if !ok {
			return "", fmt.Errorf("messagegen: no Go type name supplied for message id %d", d.ID)
		}

		responseIDs, _ := protocol.ResponseSet(d.ID)
		view := messageView{ID: d.ID, GoType: goType, ResponseIDs: responseIDs}

		for _, rid := range responseIDs {
			if rid == message.EmptyResponseID {
				continue
			}
			respGo, ok := names.Response[rid]
			if !ok {
				return "", fmt.Errorf("messagegen: no Go type name supplied for response id %d", rid)
			}
			if view.HasResponse {
				view.Polymorphic = true
				view.ResponseGo = ""
			} else {
				view.HasResponse = true
				view.ResponseGo = respGo
			}
		}

		views = append(views, view)
	}

	data := templateData{Package: pkg, Name: className, Flags: flags, Messages: views}

	tmpl, err := template.New("shim").Funcs(template.FuncMap{
		"methodName": methodName,
		"returnType": returnType,
	}).Parse(shimTemplate)
	if err != nil {
		return "", fmt.Errorf("messagegen: parsing internal template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("messagegen: executing template: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("messagegen: generated source does not parse: %w", err)
	}

	return string(formatted), nil
}

// methodName derives Send<Type>/Register<Type> method names from a
// message's Go type name (stripping a leading package-qualifier dot, if
// any, since shims are generated to live alongside their messages).
func methodName(goType string) string {
	name := goType
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			name = name[i+1:]
			break
		}
	}
	return name
}

// returnType is the Go type a message's typed Send/Register overload
// uses for its response: the one declared response type, message.Response
// when the message declares more than one (a statically-named type
// can't cover both, so the overload degrades to the same interface the
// untyped sender/receiver already use), or message.EmptyResponse.
func returnType(m messageView) string {
	switch {
	case m.Polymorphic:
		return "message.Response"
	case m.HasResponse:
		return m.ResponseGo
	default:
		return "message.EmptyResponse"
	}
}

const shimTemplate = `// Code generated by messagegen. DO NOT EDIT.

package {{.Package}}

import (
	"context"

	"github.com/oasislabs/protorpc/message"
)

{{if .Flags.Sender}}
// {{.Name}}Sender is a protocol-specialized sender: one typed method per
// registered message type, instead of the single untyped
// message.BoundMessageSender.Send.
type {{.Name}}Sender struct {
	*message.BoundMessageSender
}

// New{{.Name}}Sender wraps an already-bound sender.
func New{{.Name}}Sender(b *message.BoundMessageSender) *{{.Name}}Sender {
	return &{{.Name}}Sender{BoundMessageSender: b}
}
{{range .Messages}}
// Send{{methodName .GoType}} sends a {{.GoType}} and returns its typed response.{{if .Polymorphic}} {{.GoType}} may produce more than one response type, so the result is returned as message.Response and the caller type-switches on it.{{end}}
func (s *{{$.Name}}Sender) Send{{methodName .GoType}}(m {{.GoType}}) ({{returnType .}}, error) {
	resp, err := s.Send(m)
	if err != nil {
		var zero {{returnType .}}
		return zero, err
	}
	if resp == nil {
		var zero {{returnType .}}
		return zero, nil
	}
{{if .Polymorphic}}	return resp, nil
{{else}}	typed, ok := resp.({{returnType .}})
	if !ok {
		var zero {{returnType .}}
		return zero, nil
	}
	return typed, nil
{{end}}}
{{if $.Flags.Async}}
// Send{{methodName .GoType}}Async is the context-suspending variant of Send{{methodName .GoType}}.
func (s *{{$.Name}}Sender) Send{{methodName .GoType}}Async(ctx context.Context, m {{.GoType}}) ({{returnType .}}, error) {
	resp, err := s.SendAsync(ctx, m)
	if err != nil {
		var zero {{returnType .}}
		return zero, err
	}
	if resp == nil {
		var zero {{returnType .}}
		return zero, nil
	}
{{if .Polymorphic}}	return resp, nil
{{else}}	typed, ok := resp.({{returnType .}})
	if !ok {
		var zero {{returnType .}}
		return zero, nil
	}
	return typed, nil
{{end}}}
{{end}}
{{end}}
{{end}}
{{if .Flags.Receiver}}
// {{.Name}}Handlers is the registration surface a protocol-specialized
// receiver offers: one typed Register call per message type, so a
// handler's signature is checked against the protocol at compile time
// instead of only at message.MessageReceiver.Validate time.
type {{.Name}}Handlers struct {
	Receiver *message.MessageReceiver
}
{{range .Messages}}
// Register{{methodName .GoType}} registers handler for {{.GoType}}.
func (h *{{$.Name}}Handlers) Register{{methodName .GoType}}(handler func(ctx context.Context, obj interface{}, m {{.GoType}}) ({{returnType .}}, error)) error {
	return h.Receiver.Register({{.ID}}, []int{ {{range .ResponseIDs}}{{.}}, {{end}} }, func(ctx context.Context, obj interface{}, msg message.Message) (message.Response, error) {
		typed, ok := msg.({{.GoType}})
		if !ok {
			return nil, nil
		}
		return handler(ctx, obj, typed)
	})
}
{{end}}
{{end}}
`
