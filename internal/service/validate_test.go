package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/conditions"
	"github.com/PADAS/er-server-sub001/internal/models"
	"github.com/PADAS/er-server-sub001/internal/schedule"
	"github.com/PADAS/er-server-sub001/internal/variables"
)

type fakeEventTypeLister struct {
	eventTypes map[string]models.EventType
}

func (f *fakeEventTypeLister) ListByValues(ctx context.Context, values []string) ([]models.EventType, error) {
	var out []models.EventType
	for _, v := range values {
		if et, ok := f.eventTypes[v]; ok {
			out = append(out, et)
		}
	}
	return out, nil
}

type noopResolver struct{}

func (noopResolver) ResolveQueryChoices(ctx context.Context, choiceID string) ([]variables.Option, error) {
	return nil, nil
}

func (noopResolver) ResolveTableChoices(ctx context.Context, tableID string) ([]variables.Option, error) {
	return nil, nil
}

func (noopResolver) ResolveSubjectGroups(ctx context.Context) ([]variables.Option, error) {
	return nil, nil
}

func setupValidator() *AlertRuleValidator {
	lister := &fakeEventTypeLister{eventTypes: map[string]models.EventType{
		"carcass_rep": {
			ID:    "et-1",
			Value: "carcass_rep",
			Schema: `{"schema": {"properties": {
				"carcassrep_species": {"type": "string", "enumNames": {"redriverhog": "Red River Hog"}}
			}}}`,
		},
	}}
	projector := variables.NewProjector(noopResolver{}, zap.NewNop())
	return NewAlertRuleValidator(lister, projector, zap.NewNop())
}

func TestValidateAlertRule_Valid(t *testing.T) {
	v := setupValidator()

	rule := &models.AlertRule{
		EventTypes: []string{"carcass_rep"},
		Schedule:   json.RawMessage(`{"schedule_type": "week", "periods": {"monday": [["08:00", "12:00"]]}}`),
		Conditions: json.RawMessage(`{"all": [
			{"name": "title", "operator": "contains", "value": "test"},
			{"name": "carcassrep_species", "operator": "is_contained_by", "value": ["redriverhog"]}
		]}`),
	}

	require.NoError(t, v.ValidateAlertRule(context.Background(), rule))
}

func TestValidateAlertRule_EmptyRuleIsValid(t *testing.T) {
	v := setupValidator()
	require.NoError(t, v.ValidateAlertRule(context.Background(), &models.AlertRule{}))
}

func TestValidateAlertRule_BadSchedule(t *testing.T) {
	v := setupValidator()

	rule := &models.AlertRule{
		Schedule: json.RawMessage(`{"periods": {"monday": [["12:00", "08:00"]]}}`),
	}

	err := v.ValidateAlertRule(context.Background(), rule)
	require.Error(t, err)

	var validationErr *schedule.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestValidateAlertRule_UnknownVariable(t *testing.T) {
	v := setupValidator()

	rule := &models.AlertRule{
		EventTypes: []string{"carcass_rep"},
		Conditions: json.RawMessage(`{"all": [
			{"name": "no_such_field", "operator": "contains", "value": "x"}
		]}`),
	}

	err := v.ValidateAlertRule(context.Background(), rule)
	require.Error(t, err)

	var varErr *conditions.UnknownVariableError
	require.True(t, errors.As(err, &varErr))
	assert.Equal(t, "no_such_field", varErr.Name)
}

func TestValidateAlertRule_SchemaVariableOutOfScope(t *testing.T) {
	v := setupValidator()

	// 通配范围的规则只能引用内置变量
	rule := &models.AlertRule{
		Conditions: json.RawMessage(`{"all": [
			{"name": "carcassrep_species", "operator": "is_contained_by", "value": ["redriverhog"]}
		]}`),
	}

	err := v.ValidateAlertRule(context.Background(), rule)
	require.Error(t, err)

	var varErr *conditions.UnknownVariableError
	assert.True(t, errors.As(err, &varErr))
}

func TestValidateAlertRule_UnknownEventType(t *testing.T) {
	v := setupValidator()

	rule := &models.AlertRule{
		EventTypes: []string{"carcass_rep", "no_such_type"},
		Conditions: json.RawMessage(`{"all": [
			{"name": "title", "operator": "contains", "value": "x"}
		]}`),
	}

	err := v.ValidateAlertRule(context.Background(), rule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event types")
}

func TestValidateAlertRule_UnknownOperator(t *testing.T) {
	v := setupValidator()

	rule := &models.AlertRule{
		Conditions: json.RawMessage(`{"all": [
			{"name": "title", "operator": "sounds_like", "value": "x"}
		]}`),
	}

	err := v.ValidateAlertRule(context.Background(), rule)
	require.Error(t, err)

	var opErr *conditions.UnknownOperatorError
	assert.True(t, errors.As(err, &opErr))
}
