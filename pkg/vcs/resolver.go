package vcs

import (
	"fmt"
	"strings"

	"github.com/arewefastyet/jsbuild/pkg/interfaces"
	"github.com/arewefastyet/jsbuild/pkg/logger"
	"github.com/arewefastyet/jsbuild/pkg/process"
)

// Kind names a SourceSync backend
type Kind string

const (
	KindHG         Kind = "hg"
	KindSVN        Kind = "svn"
	KindGit        Kind = "git"
	KindDepot      Kind = "depot"
	KindMozillaTry Kind = "mozilla-try"
)

const (
	// TokenMozillaTry selects the try variant of the Mercurial puller
	TokenMozillaTry = "mozilla-try"
	// TokenV8 selects the depot_tools puller for v8
	TokenV8 = "v8"
)

// KnownRepositories maps short engine names to their canonical remotes
var KnownRepositories = map[string]string{
	"mozilla": "http://hg.mozilla.org/integration/mozilla-inbound",
	"webkit":  "https://svn.webkit.org/repository/webkit/trunk",
	"servo":   "https://github.com/servo/servo.git",
}

// Resolution is an identifier bound to its backend
type Resolution struct {
	Identifier string
	Kind       Kind
}

// Resolver maps repository names to pullers
type Resolver struct {
	runner      process.Runner
	logger      logger.Logger
	known       map[string]string
	depotBranch string
}

// Option configures a Resolver
type Option func(*Resolver)

// WithRepositories adds or overrides short names
func WithRepositories(repos map[string]string) Option {
	return func(r *Resolver) {
		for name, url := range repos {
			r.known[name] = url
		}
	}
}

// WithDepotBranch sets the branch depot checkouts track; empty keeps the default
func WithDepotBranch(branch string) Option {
	return func(r *Resolver) {
		if branch != "" {
			r.depotBranch = branch
		}
	}
}

// NewResolver creates a resolver whose pullers run their clients through runner
func NewResolver(runner process.Runner, log logger.Logger, opts ...Option) *Resolver {
	if log == nil {
		log = logger.Discard()
	}
	r := &Resolver{
		runner:      runner,
		logger:      log,
		known:       make(map[string]string, len(KnownRepositories)),
		depotBranch: DefaultDepotBranch,
	}
	for name, url := range KnownRepositories {
		r.known[name] = url
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve expands a short name and picks the backend from the identifier's shape.
// The checks run in a fixed order and there is no fallback backend.
func (r *Resolver) Resolve(name string) (Resolution, error) {
	id := strings.TrimSpace(name)
	if url, ok := r.known[id]; ok {
		id = url
	}

	switch {
	case id == TokenMozillaTry:
		return Resolution{Identifier: id, Kind: KindMozillaTry}, nil
	case strings.Contains(id, "hg."):
		return Resolution{Identifier: id, Kind: KindHG}, nil
	case strings.Contains(id, "svn."):
		return Resolution{Identifier: id, Kind: KindSVN}, nil
	case strings.HasSuffix(id, ".git"):
		return Resolution{Identifier: id, Kind: KindGit}, nil
	case id == TokenV8:
		return Resolution{Identifier: id, Kind: KindDepot}, nil
	}
	return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownRepository, name)
}

// NewPuller resolves name and binds the backend to folder. Nothing is run yet.
func (r *Resolver) NewPuller(name, folder string) (interfaces.Puller, error) {
	res, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Resolved repository",
		logger.WithField("name", name),
		logger.WithField("repo", res.Identifier),
		logger.WithField("backend", res.Kind))

	switch res.Kind {
	case KindMozillaTry:
		return NewMozillaTry(folder, r.runner, r.logger), nil
	case KindHG:
		return NewHG(res.Identifier, folder, r.runner, r.logger), nil
	case KindSVN:
		return NewSVN(res.Identifier, folder, r.runner, r.logger), nil
	case KindGit:
		return NewGit(res.Identifier, folder, r.runner, r.logger), nil
	case KindDepot:
		return NewDepot(res.Identifier, folder, r.depotBranch, r.runner, r.logger), nil
	}
	return nil, fmt.Errorf("%w: no backend for %s", ErrUnknownRepository, res.Kind)
}
