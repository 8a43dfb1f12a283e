package logger

import (
	"time"
)

// Standard field key constants for structured logging.
const (
	FieldComponent     = "component"
	FieldStage         = "stage"
	FieldURI           = "uri"
	FieldPattern       = "pattern"
	FieldProtocol      = "protocol"
	FieldLine          = "line"
	FieldCount         = "count"
	FieldCheckpointKey = "checkpoint_key"
	FieldRunID         = "run_id"
	FieldOperation     = "operation"
	FieldError         = "error"
	FieldDuration      = "duration_ms"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	log.Info("opened", logger.Fields(logger.FieldURI, uri, logger.FieldLine, 0))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation on a URI that failed.
func ErrorFields(op, uri string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldURI:       uri,
		FieldError:     err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldDuration:  d.Milliseconds(),
	}
}
