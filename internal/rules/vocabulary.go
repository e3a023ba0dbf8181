package rules

import "sort"

// Vocabulary is an immutable set of known operator names and schedule presets.
// Validators receive one explicitly; nothing in this package mutates a
// Vocabulary after construction.
type Vocabulary struct {
	operators map[string]struct{}
	presets   map[string]struct{}
}

// NewVocabulary builds a Vocabulary from the given operator names and
// schedule presets. The inputs are copied.
func NewVocabulary(operators, presets []string) Vocabulary {
	v := Vocabulary{
		operators: make(map[string]struct{}, len(operators)),
		presets:   make(map[string]struct{}, len(presets)),
	}
	for _, op := range operators {
		v.operators[op] = struct{}{}
	}
	for _, p := range presets {
		v.presets[p] = struct{}{}
	}
	return v
}

// KnownOperator reports whether op is in the advisory operator list.
func (v Vocabulary) KnownOperator(op string) bool {
	_, ok := v.operators[op]
	return ok
}

// KnownPreset reports whether s is a schedule preset such as @daily.
func (v Vocabulary) KnownPreset(s string) bool {
	_, ok := v.presets[s]
	return ok
}

// Operators returns the operator names in sorted order.
func (v Vocabulary) Operators() []string {
	return sortedKeys(v.operators)
}

// Presets returns the schedule presets in sorted order.
func (v Vocabulary) Presets() []string {
	return sortedKeys(v.presets)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultVocabulary returns the Airflow operators and presets the validators
// recognise out of the box. Each call returns an independent value.
func DefaultVocabulary() Vocabulary {
	return NewVocabulary(defaultOperators, defaultPresets)
}

var defaultOperators = []string{
	"BashOperator",
	"PythonOperator",
	"EmailOperator",
	"SimpleHttpOperator",
	"PostgresOperator",
	"MySqlOperator",
	"SqliteOperator",
	"MsSqlOperator",
	"OracleOperator",
	"S3FileTransformOperator",
	"S3ToRedshiftOperator",
	"RedshiftToS3Operator",
	"BigQueryOperator",
	"BigQueryCreateEmptyTableOperator",
	"GCSToGoogleDriveOperator",
	"SnowflakeOperator",
	"SparkSubmitOperator",
	"DatabricksSubmitRunOperator",
	"KubernetesPodOperator",
	"DockerOperator",
	"EmptyOperator",
	"BranchPythonOperator",
	"ShortCircuitOperator",
	"TriggerDagRunOperator",
	"ExternalTaskSensor",
	"HttpSensor",
	"S3KeySensor",
	"SqlSensor",
	"TimeDeltaSensor",
}

var defaultPresets = []string{
	"@once",
	"@hourly",
	"@daily",
	"@weekly",
	"@monthly",
	"@yearly",
	"@annually",
}
