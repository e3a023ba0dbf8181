package models

import (
	"bytes"
	"encoding/json"
)

// Record is a loosely-typed object such as a connection or variable definition.
type Record map[string]any

// String returns the string value stored under key, or "" if absent or not a string.
func (r Record) String(key string) string {
	if r == nil {
		return ""
	}
	s, _ := r[key].(string)
	return s
}

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	if r == nil {
		return false
	}
	v, ok := r[key]
	return ok && v != nil
}

// Specification is a pipeline (DAG) description under validation.
//
// Fields the model does not know about are kept in Extra so that a
// decode/encode cycle never drops data produced by a generator.
type Specification struct {
	// ID is the DAG identifier. Decoding also accepts the key "id".
	ID string `json:"dag_id"`
	// Description is free text describing the pipeline.
	Description string `json:"description"`
	// Schedule is a preset (@daily, ...) or cron expression. Nil means unscheduled.
	Schedule *string `json:"schedule"`
	// StartDate is an ISO date (YYYY-MM-DD) the DAG starts from.
	StartDate string `json:"start_date,omitempty"`
	// Tasks are the nodes of the DAG, in declaration order.
	Tasks []Task `json:"tasks"`
	// Connections are external connection definitions referenced by tasks.
	Connections []Record `json:"connections,omitempty"`
	// Variables are Airflow variables the DAG expects.
	Variables []Record `json:"variables,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Task is a unit of work inside a Specification.
type Task struct {
	// TaskID identifies the task within its specification.
	TaskID string `json:"task_id"`
	// OperatorType is the Airflow operator class, e.g. BashOperator.
	OperatorType string `json:"operator_type"`
	// Params are operator arguments.
	Params map[string]any `json:"params,omitempty"`
	// Dependencies lists task_ids that must run before this task.
	Dependencies []string `json:"dependencies"`

	Extra map[string]json.RawMessage `json:"-"`
}

var (
	specFields = []string{"dag_id", "description", "schedule", "start_date", "tasks", "connections", "variables"}
	taskFields = []string{"task_id", "operator_type", "params", "dependencies"}
)

// UnmarshalJSON decodes a specification, accepting "id" as an alias of "dag_id"
// and keeping unknown keys in Extra.
func (s *Specification) UnmarshalJSON(data []byte) error {
	type plain Specification
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	extra, err := unknownFields(data, specFields)
	if err != nil {
		return err
	}
	if p.ID == "" {
		if raw, ok := extra["id"]; ok {
			var id string
			if err := json.Unmarshal(raw, &id); err == nil {
				p.ID = id
				delete(extra, "id")
			}
		}
	}
	if len(extra) > 0 {
		p.Extra = extra
	}

	*s = Specification(p)
	return nil
}

// MarshalJSON encodes the specification including any preserved unknown keys.
func (s Specification) MarshalJSON() ([]byte, error) {
	type plain Specification
	b, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	return mergeExtra(b, s.Extra)
}

// UnmarshalJSON decodes a task and keeps unknown keys in Extra.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, taskFields)
	if err != nil {
		return err
	}
	if len(extra) > 0 {
		p.Extra = extra
	}
	*t = Task(p)
	return nil
}

// MarshalJSON encodes the task including any preserved unknown keys.
func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	b, err := json.Marshal(plain(t))
	if err != nil {
		return nil, err
	}
	return mergeExtra(b, t.Extra)
}

// ScheduleValue returns the schedule string, or "" when unset.
func (s *Specification) ScheduleValue() string {
	if s == nil || s.Schedule == nil {
		return ""
	}
	return *s.Schedule
}

// Clone returns a deep copy of the specification. The copy shares no
// slices or maps with the receiver.
func (s *Specification) Clone() *Specification {
	if s == nil {
		return nil
	}
	c := &Specification{
		ID:          s.ID,
		Description: s.Description,
		StartDate:   s.StartDate,
		Extra:       cloneRaw(s.Extra),
	}
	if s.Schedule != nil {
		sched := *s.Schedule
		c.Schedule = &sched
	}
	if s.Tasks != nil {
		c.Tasks = make([]Task, len(s.Tasks))
		for i, t := range s.Tasks {
			c.Tasks[i] = t.Clone()
		}
	}
	c.Connections = cloneRecords(s.Connections)
	c.Variables = cloneRecords(s.Variables)
	return c
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := Task{
		TaskID:       t.TaskID,
		OperatorType: t.OperatorType,
		Extra:        cloneRaw(t.Extra),
	}
	if t.Dependencies != nil {
		c.Dependencies = append([]string{}, t.Dependencies...)
	}
	if t.Params != nil {
		c.Params = cloneValue(map[string]any(t.Params)).(map[string]any)
	}
	return c
}

// StringPtr is a helper for building specifications with a schedule.
func StringPtr(s string) *string {
	return &s
}

func unknownFields(data []byte, known []string) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(raw, k)
	}
	return raw, nil
}

func mergeExtra(encoded []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return encoded, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &m); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, exists := m[k]; !exists {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

func cloneRaw(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = json.RawMessage(bytes.Clone(v))
	}
	return out
}

func cloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		if r != nil {
			out[i] = Record(cloneValue(map[string]any(r)).(map[string]any))
		}
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case Record:
		return Record(cloneValue(map[string]any(val)).(map[string]any))
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	case []string:
		return append([]string{}, val...)
	default:
		return val
	}
}
