// Package commands is the built-in "internal" integration. Its actions
// administer the engine itself: trigger state and user moderation.
package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"triggerd/internal/actions"
	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
	"triggerd/internal/cooldown"
	"triggerd/internal/models"
	"triggerd/internal/providers"
)

const (
	// ProviderID of the internal integration
	ProviderID = "internal"
	// CategoryID holding every internal command
	CategoryID = "internal-commands"
)

// Command is one internal action.
type Command interface {
	Name() string
	Execute(ctx context.Context, req models.InternalRequest) (string, error)
}

// Provider runs Commands addressed to the internal provider id.
type Provider struct {
	registry *actions.Provider
	commands map[string]Command
	order    []string
	clock    cooldown.Clock
	logger   logging.Logger
}

// NewProvider creates the internal integration with the given commands.
func NewProvider(logger logging.Logger, cmds ...Command) *Provider {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	p := &Provider{
		commands: make(map[string]Command, len(cmds)),
		clock:    cooldown.SystemClock,
		logger:   logger.WithFields(logging.String("provider", ProviderID)),
	}
	for _, c := range cmds {
		if _, dup := p.commands[c.Name()]; !dup {
			p.order = append(p.order, c.Name())
		}
		p.commands[c.Name()] = c
	}
	p.registry = actions.NewProvider(ProviderID, p.catalogue, logger)
	return p
}

// catalogue lists the commands as actions of the single internal category.
func (p *Provider) catalogue(context.Context) ([]actions.Category, error) {
	category := actions.Category{ID: CategoryID}
	for _, name := range p.order {
		category.Actions = append(category.Actions, actions.ActionData{ID: name, Name: name})
	}
	return []actions.Category{category}, nil
}

func (p *Provider) ProviderID() string { return ProviderID }

func (p *Provider) Actions() *actions.Provider { return p.registry }

// Start loads the command catalogue.
func (p *Provider) Start(ctx context.Context) error {
	_, err := p.registry.LoadActions(ctx)
	return err
}

// ExecuteRequest runs every command named in the request, in order, and
// stops at the first failure.
func (p *Provider) ExecuteRequest(ctx context.Context, req models.InternalRequest) models.Result {
	if req.ProviderKey.CategoryID != CategoryID {
		return models.Fail(fmt.Sprintf("unknown category '%s'", req.ProviderKey.CategoryID))
	}

	claimed, err := providers.Claim(p.registry, req, "", p.clock())
	if err != nil {
		return providers.ResultFromError(err)
	}

	messages := make([]string, 0, len(claimed))
	for _, a := range claimed {
		cmd, ok := p.commands[a.ID]
		if !ok {
			return models.Fail(fmt.Sprintf("command '%s' is not available", a.ID))
		}
		msg, err := cmd.Execute(ctx, req)
		if err != nil {
			p.logger.Warn("Command failed", logging.String("command", a.ID), logging.Err(err))
			return models.Fail(err.Error())
		}
		messages = append(messages, msg)
	}
	return models.OK(strings.Join(messages, "; "))
}

// parseNumber accepts JSON numbers and numeric strings.
func parseNumber(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, errors.ValidationError(fmt.Sprintf("'%s' is not a number", n))
		}
		return f, nil
	default:
		return 0, errors.ValidationError(fmt.Sprintf("expected a number, got %T", v))
	}
}
