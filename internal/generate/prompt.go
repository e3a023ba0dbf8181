package generate

// generationPrompt is the prompt template for turning a description into a
// DAG specification.
const generationPrompt = `Design an Apache Airflow DAG for the following request.

Request:
%s

Return ONLY a JSON object with this exact structure (no other text):
{
  "dag_id": "lowercase_identifier",
  "description": "What the DAG does",
  "schedule": "@daily",
  "start_date": "2024-01-01",
  "tasks": [
    {
      "task_id": "extract_orders",
      "operator_type": "PythonOperator",
      "params": {"python_callable": "extract_orders"},
      "dependencies": []
    }
  ],
  "connections": [
    {"conn_id": "orders_db", "conn_type": "postgres"}
  ],
  "variables": [
    {"key": "batch_size", "value": "500"}
  ]
}

Guidelines:
- dag_id uses lowercase letters, numbers and underscores
- task_id uses letters, numbers and underscores only, and is unique
- dependencies list the task_ids that must finish first; never the task itself
- schedule is a preset (@hourly, @daily, ...) or a five-field cron expression, or null for manual runs
- only declare connections and variables the tasks actually use
%s`

// operatorHint lists the operators the target environment provides.
const operatorHint = `- operator_type must be one of: %s
`

// presetHint lists the schedule presets the target environment accepts.
const presetHint = `- a preset schedule must be one of: %s
`
