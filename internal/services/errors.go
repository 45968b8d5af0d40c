package services

import "fmt"

// OrchestrationError is the fatal failure of a pipeline step after its
// retry budget is spent. The step label matches the midpoint names the
// stream emits.
type OrchestrationError struct {
  Step string
  Err  error
}

func (e *OrchestrationError) Error() string {
  if e.Err == nil {
    return fmt.Sprintf("orchestration failure at %s", e.Step)
  }
  return fmt.Sprintf("orchestration failure at %s: %v", e.Step, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
  return e.Err
}
