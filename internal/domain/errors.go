package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration signals a wiring defect in the pipeline configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnsupportedMethod signals an unknown merge method, encoder or index variant.
	ErrUnsupportedMethod = errors.New("unsupported method")
	// ErrResolution signals a scored reference that cannot be loaded from the collection.
	ErrResolution = errors.New("resolution error")
	// ErrBuild signals that the encoder or storage collaborator failed to produce a representation.
	ErrBuild = errors.New("build error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrTransformProviderError signals an LLM transform provider failure.
	ErrTransformProviderError = errors.New("transform provider error")
)

// UnresolvedKeyError reports a representation key with no representation config.
type UnresolvedKeyError struct {
	Key     string
	Section string
}

func (e *UnresolvedKeyError) Error() string {
	return fmt.Sprintf("%s: unable to resolve representation %q, expected a definition under %s",
		ErrConfiguration.Error(), e.Key, e.Section)
}

func (e *UnresolvedKeyError) Unwrap() error { return ErrConfiguration }

// MalformedBridgeError reports a bridge that does not compare exactly two representations.
type MalformedBridgeError struct {
	Bridge string
	Keys   []string
}

func (e *MalformedBridgeError) Error() string {
	return fmt.Sprintf("%s: bridge %q must declare exactly 2 repnodes, got %d [%s]",
		ErrConfiguration.Error(), e.Bridge, len(e.Keys), strings.Join(e.Keys, ", "))
}

func (e *MalformedBridgeError) Unwrap() error { return ErrConfiguration }

// NoMergeError reports a pipeline without any merge policy.
type NoMergeError struct{}

func (e *NoMergeError) Error() string {
	return ErrConfiguration.Error() + ": no merge specified and none declared under merges"
}

func (e *NoMergeError) Unwrap() error { return ErrConfiguration }

// UnknownNameError reports a reference to an undeclared merge or bridge.
type UnknownNameError struct {
	Kind string // "merge", "bridge"
	Name string
	From string // referencing merge or bridge, may be empty
}

func (e *UnknownNameError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("%s: %s %q referenced by %q is not declared",
			ErrConfiguration.Error(), e.Kind, e.Name, e.From)
	}
	return fmt.Sprintf("%s: %s %q is not declared", ErrConfiguration.Error(), e.Kind, e.Name)
}

func (e *UnknownNameError) Unwrap() error { return ErrConfiguration }

// UnknownFunctionError reports a match or eval function name missing from the registry.
type UnknownFunctionError struct {
	Kind   string // "matchfn", "evalfn"
	Name   string
	Bridge string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("%s: %s %q of bridge %q is not registered",
		ErrConfiguration.Error(), e.Kind, e.Name, e.Bridge)
}

func (e *UnknownFunctionError) Unwrap() error { return ErrConfiguration }

// UnsupportedMergeMethodError reports a merge policy with an unknown fusion method.
type UnsupportedMergeMethodError struct {
	Merge  string
	Method string
}

func (e *UnsupportedMergeMethodError) Error() string {
	return fmt.Sprintf("%s: unknown merge method %q in merge %q",
		ErrUnsupportedMethod.Error(), e.Method, e.Merge)
}

func (e *UnsupportedMergeMethodError) Unwrap() error { return ErrUnsupportedMethod }

// UnknownEncoderError reports an encoder name with no index routing.
type UnknownEncoderError struct {
	Encoder string
	Key     string
}

func (e *UnknownEncoderError) Error() string {
	return fmt.Sprintf("%s: unknown encoder %q for representation %q",
		ErrUnsupportedMethod.Error(), e.Encoder, e.Key)
}

func (e *UnknownEncoderError) Unwrap() error { return ErrUnsupportedMethod }

// UnresolvedReferenceError reports a scored reference whose id is absent from the collection.
type UnresolvedReferenceError struct {
	ID       string
	Position int
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s: reference %q at position %d not found in document collection",
		ErrResolution.Error(), e.ID, e.Position)
}

func (e *UnresolvedReferenceError) Unwrap() error { return ErrResolution }

// BuildError wraps a collaborator failure while building a representation.
type BuildError struct {
	Key     string
	Encoder string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: representation %q (encoder %q): %v",
		ErrBuild.Error(), e.Key, e.Encoder, e.Err)
}

// Is matches ErrBuild in addition to the wrapped cause.
func (e *BuildError) Is(target error) bool { return target == ErrBuild }

func (e *BuildError) Unwrap() error { return e.Err }
