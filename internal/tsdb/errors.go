package tsdb

import "fmt"

// DataSourceError reports a failure talking to the time-series store:
// connection, authentication or query errors. It is the only error the
// query path produces.
type DataSourceError struct {
	Op          string
	Measurement string
	Err         error
}

func (e *DataSourceError) Error() string {
	if e.Measurement == "" {
		return fmt.Sprintf("data source %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("data source %s %s: %v", e.Op, e.Measurement, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}
