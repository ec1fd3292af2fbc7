package service

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/internal/query"
	appErrors "github.com/noah-isme/inbox-manager-api/pkg/errors"
)

// Record actions a queue may expose.
const (
	ActionDecision        = "decision"
	ActionCancel          = "cancel"
	ActionReply           = "reply"
	ActionImportantReply  = "important-reply"
	ActionEscalationReply = "escalation-reply"
	ActionRemove          = "remove"
	ActionRestore         = "restore"
	ActionDelete          = "delete"
)

// DefaultQueues returns the built-in moderation queues.
func DefaultQueues() []models.QueueDefinition {
	notRemoved := models.Eq(models.ColumnRemoved, false)
	return []models.QueueDefinition{
		{
			Name:         "sendguard",
			Title:        "SendGuard",
			EmptyMessage: "There are no items awaiting moderation.",
			Filter: models.Expression(models.Or(
				models.And(models.Eq(models.ColumnPermission, string(models.PermissionWaiting)), notRemoved),
				models.And(
					models.Eq(models.ColumnPermission, string(models.PermissionObjection)),
					models.Eq(models.ColumnObjectionNAI, true),
					notRemoved,
				),
			)),
			Renderer: RendererSendGuard,
			Actions:  []string{ActionDecision, ActionCancel},
		},
		{
			Name:         "manual-reply",
			Title:        "Manual Reply",
			EmptyMessage: "No items are awaiting manual reply.",
			Filter: models.EqualitySet(
				models.EqualityPair{Column: models.ColumnPermission, Value: string(models.PermissionManualHandle)},
				models.EqualityPair{Column: models.ColumnReplied, Value: false},
				models.EqualityPair{Column: models.ColumnRemoved, Value: false},
			),
			Renderer: RendererManualReply,
			Actions:  []string{ActionReply, ActionRemove},
		},
		{
			Name:         "escalation",
			Title:        "Escalation",
			EmptyMessage: "There are no escalated items.",
			Filter: models.EqualitySet(
				models.EqualityPair{Column: models.ColumnEscalation, Value: true},
				models.EqualityPair{Column: models.ColumnEscalatedReplied, Value: false},
				models.EqualityPair{Column: models.ColumnRemoved, Value: false},
			),
			Renderer: RendererEscalation,
			Actions:  []string{ActionEscalationReply, ActionRemove},
		},
		{
			Name:         "important",
			Title:        "Important",
			EmptyMessage: "There are no important items.",
			Filter: models.EqualitySet(
				models.EqualityPair{Column: models.ColumnImportant, Value: true},
				models.EqualityPair{Column: models.ColumnImportantReplied, Value: false},
				models.EqualityPair{Column: models.ColumnRemoved, Value: false},
			),
			Renderer: RendererImportant,
			Actions:  []string{ActionImportantReply, ActionRemove},
		},
		{
			Name:         "recovery",
			Title:        "Recovery",
			EmptyMessage: "There are no removed or canceled items to recover or delete.",
			Filter: models.Expression(models.Or(
				models.Eq(models.ColumnPermission, string(models.PermissionCancel)),
				models.Eq(models.ColumnRemoved, true),
			)),
			TimeWindow:   true,
			DefaultRange: models.Range7d,
			Renderer:     RendererRecovery,
			Actions:      []string{ActionRestore, ActionDelete},
		},
	}
}

// QueueCatalog holds the queue definitions served by the API.
type QueueCatalog struct {
	order  []string
	queues map[string]models.QueueDefinition
}

// NewQueueCatalog builds a catalog from definitions, validating each one.
func NewQueueCatalog(defs []models.QueueDefinition) (*QueueCatalog, error) {
	c := &QueueCatalog{queues: make(map[string]models.QueueDefinition, len(defs))}
	for _, def := range defs {
		if err := validateQueue(def); err != nil {
			return nil, err
		}
		if _, dup := c.queues[def.Name]; dup {
			return nil, fmt.Errorf("queue %q defined twice", def.Name)
		}
		c.queues[def.Name] = def
		c.order = append(c.order, def.Name)
	}
	return c, nil
}

// LoadQueueCatalog returns the built-in catalog, with queues from the YAML
// file at path replacing or extending it when path is set.
func LoadQueueCatalog(path string) (*QueueCatalog, error) {
	defs := DefaultQueues()
	if path == "" {
		return NewQueueCatalog(defs)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queues file: %w", err)
	}
	custom, err := ParseQueueDefinitions(raw)
	if err != nil {
		return nil, fmt.Errorf("parse queues file %s: %w", path, err)
	}
	index := make(map[string]int, len(defs))
	for i, def := range defs {
		index[def.Name] = i
	}
	for _, def := range custom {
		if i, ok := index[def.Name]; ok {
			defs[i] = def
			continue
		}
		index[def.Name] = len(defs)
		defs = append(defs, def)
	}
	return NewQueueCatalog(defs)
}

type queueFile struct {
	Queues []queueSpec `yaml:"queues"`
}

type queueSpec struct {
	Name         string                `yaml:"name"`
	Title        string                `yaml:"title"`
	EmptyMessage string                `yaml:"emptyMessage"`
	Expression   string                `yaml:"expression"`
	Equals       []models.EqualityPair `yaml:"equals"`
	TimeWindow   bool                  `yaml:"timeWindow"`
	DefaultRange string                `yaml:"defaultRange"`
	Renderer     string                `yaml:"renderer"`
	Actions      []string              `yaml:"actions"`
}

// ParseQueueDefinitions decodes a YAML queues document. Each queue sets
// either expression (PostgREST logical syntax) or equals (column/value
// pairs, null meaning IS NULL).
func ParseQueueDefinitions(raw []byte) ([]models.QueueDefinition, error) {
	var file queueFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	defs := make([]models.QueueDefinition, 0, len(file.Queues))
	for _, spec := range file.Queues {
		def := models.QueueDefinition{
			Name:         strings.TrimSpace(spec.Name),
			Title:        spec.Title,
			EmptyMessage: spec.EmptyMessage,
			TimeWindow:   spec.TimeWindow,
			DefaultRange: spec.DefaultRange,
			Renderer:     spec.Renderer,
			Actions:      spec.Actions,
		}
		switch {
		case spec.Expression != "" && len(spec.Equals) > 0:
			return nil, fmt.Errorf("queue %q: set either expression or equals", def.Name)
		case spec.Expression != "":
			expr, err := query.ParseExpression(spec.Expression)
			if err != nil {
				return nil, fmt.Errorf("queue %q: %w", def.Name, err)
			}
			def.Filter = models.Expression(expr)
		case len(spec.Equals) > 0:
			def.Filter = models.EqualitySet(spec.Equals...)
		default:
			return nil, fmt.Errorf("queue %q: a filter is required", def.Name)
		}
		if def.Title == "" {
			def.Title = def.Name
		}
		if def.Renderer == "" {
			def.Renderer = RendererRecord
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func validateQueue(def models.QueueDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("queue name is required")
	}
	if !knownRenderer(def.Renderer) {
		return fmt.Errorf("queue %q: unknown renderer %q", def.Name, def.Renderer)
	}
	if def.DefaultRange != "" {
		if _, ok := models.RollingRanges[def.DefaultRange]; !ok {
			return fmt.Errorf("queue %q: default range must be a rolling range", def.Name)
		}
	}
	for _, action := range def.Actions {
		if !knownAction(action) {
			return fmt.Errorf("queue %q: unknown action %q", def.Name, action)
		}
	}
	return nil
}

func knownAction(action string) bool {
	switch action {
	case ActionDecision, ActionCancel, ActionReply, ActionImportantReply, ActionEscalationReply,
		ActionRemove, ActionRestore, ActionDelete:
		return true
	}
	return false
}

// List returns the definitions in catalog order.
func (c *QueueCatalog) List() []models.QueueDefinition {
	out := make([]models.QueueDefinition, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.queues[name])
	}
	return out
}

// Names returns the queue names sorted alphabetically.
func (c *QueueCatalog) Names() []string {
	out := append([]string(nil), c.order...)
	sort.Strings(out)
	return out
}

// Get returns the named queue or NOT_FOUND.
func (c *QueueCatalog) Get(name string) (models.QueueDefinition, error) {
	def, ok := c.queues[name]
	if !ok {
		return models.QueueDefinition{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("queue %q not found", name))
	}
	return def, nil
}
