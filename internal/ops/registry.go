// Package ops is the enumerated set of operations callers may invoke by
// name. Each operation declares a typed argument struct; nothing outside
// this table is reachable.
package ops

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"aerodb/internal/dataerr"
	"aerodb/internal/denorm"
	"aerodb/internal/events"
	"aerodb/internal/probe"
)

// Observer records each operation call.
type Observer interface {
	ObserveOperation(ctx context.Context, name string, duration time.Duration, err error, missing int)
}

// Param documents one argument.
type Param struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Doc      string `json:"doc,omitempty"`
}

// Description documents one operation.
type Description struct {
	Name   string  `json:"name"`
	Doc    string  `json:"doc"`
	Write  bool    `json:"write"`
	Params []Param `json:"params"`
}

// Operation is a registered operation.
type Operation struct {
	Description
	invoke func(ctx context.Context, e *env, args map[string]any) (any, error)
}

// Deps are the collaborators operations run against.
type Deps struct {
	Service   *denorm.Service
	Prober    probe.Prober
	Publisher events.Publisher
	Observer  Observer
	Logger    *slog.Logger
}

type env struct {
	Deps
	op string
}

// Registry dispatches operation calls.
type Registry struct {
	deps   Deps
	ops    map[string]*Operation
	tracer trace.Tracer
}

// NewRegistry builds the registry of every supported operation.
func NewRegistry(deps Deps) *Registry {
	if deps.Prober == nil {
		deps.Prober = probe.Noop{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := &Registry{
		deps:   deps,
		ops:    make(map[string]*Operation),
		tracer: otel.Tracer("aerodb/ops"),
	}
	for _, op := range operations() {
		r.ops[op.Name] = op
	}
	return r
}

// Names returns the registered operation names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe documents every operation, sorted by name.
func (r *Registry) Describe() []Description {
	out := make([]Description, 0, len(r.ops))
	for _, name := range r.Names() {
		out = append(out, r.ops[name].Description)
	}
	return out
}

// Lookup returns the operation called name.
func (r *Registry) Lookup(name string) (*Operation, error) {
	op, ok := r.ops[strings.TrimSpace(name)]
	if !ok {
		return nil, &dataerr.UnknownOperationError{Name: name}
	}
	return op, nil
}

// Call decodes args for the named operation and runs it.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (result any, err error) {
	op, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "aerodb.op "+op.Name, trace.WithAttributes(
		attribute.String("aerodb.operation", op.Name),
		attribute.Bool("aerodb.write", op.Write),
	))
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		missing := missingCount(result)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("aerodb.missing", missing))
		span.End()
		if r.deps.Observer != nil {
			r.deps.Observer.ObserveOperation(ctx, op.Name, elapsed, err, missing)
		}
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		r.deps.Logger.Log(ctx, level, "operation finished",
			slog.String("operation", op.Name),
			slog.Duration("duration", elapsed),
			slog.Int("missing", missing),
			slog.Any("error", err),
		)
	}()

	if args == nil {
		args = map[string]any{}
	}
	return op.invoke(ctx, &env{Deps: r.deps, op: op.Name}, args)
}

func missingCount(result any) int {
	if res, ok := result.(*denorm.Result); ok && res != nil {
		return len(res.Missing)
	}
	return 0
}

// define registers an operation whose arguments decode into A. Fields of A
// are named by their json tag; `op:"required"` marks required arguments and
// `doc` documents them.
func define[A any](name, doc string, write bool, run func(ctx context.Context, e *env, a *A) (any, error)) *Operation {
	var zero A
	return &Operation{
		Description: Description{Name: name, Doc: doc, Write: write, Params: params(reflect.TypeOf(zero))},
		invoke: func(ctx context.Context, e *env, raw map[string]any) (any, error) {
			a := new(A)
			if err := decode(name, raw, a); err != nil {
				return nil, err
			}
			return run(ctx, e, a)
		},
	}
}

func params(t reflect.Type) []Param {
	out := make([]Param, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := jsonName(f)
		if name == "" {
			continue
		}
		out = append(out, Param{
			Name:     name,
			Type:     typeName(f),
			Required: f.Tag.Get("op") == "required",
			Doc:      f.Tag.Get("doc"),
		})
	}
	return out
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func typeName(f reflect.StructField) string {
	if t := f.Tag.Get("type"); t != "" {
		return t
	}
	switch f.Type.Kind() {
	case reflect.String:
		return "string"
	case reflect.Slice:
		return "list"
	default:
		return "any"
	}
}

func decode(op string, raw map[string]any, out any) error {
	t := reflect.TypeOf(out).Elem()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Tag.Get("op") != "required" {
			continue
		}
		if v, ok := raw[jsonName(f)]; !ok || v == nil {
			return &dataerr.InvalidArgumentError{Operation: op, Argument: jsonName(f), Reason: "is required"}
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToSliceHookFunc(","),
		ErrorUnused: true,
		TagName:     "json",
		Result:      out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return &dataerr.InvalidArgumentError{Operation: op, Reason: decodeReason(err)}
	}
	return nil
}

func decodeReason(err error) string {
	if me, ok := err.(*mapstructure.Error); ok && len(me.Errors) > 0 {
		return strings.Join(me.Errors, "; ")
	}
	return err.Error()
}

func invalid(op, arg string, format string, args ...any) error {
	return &dataerr.InvalidArgumentError{Operation: op, Argument: arg, Reason: fmt.Sprintf(format, args...)}
}
