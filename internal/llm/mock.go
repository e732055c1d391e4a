package llm

import "context"

// MockCall records one prompt pair sent to the mock.
type MockCall struct {
	System string
	User   string
}

// MockClient is a test double for the Client interface. Responses and Errs
// are consumed in call order; when exhausted, the last entry repeats.
type MockClient struct {
	Responses []*Response
	Errs      []error
	Calls     []MockCall
}

// Complete records the call and returns the next queued response or error.
func (m *MockClient) Complete(ctx context.Context, system, user string) (*Response, error) {
	i := len(m.Calls)
	m.Calls = append(m.Calls, MockCall{System: system, User: user})

	var err error
	if len(m.Errs) > 0 {
		if i >= len(m.Errs) {
			i = len(m.Errs) - 1
		}
		err = m.Errs[i]
	}
	if err != nil {
		return nil, err
	}

	i = len(m.Calls) - 1
	if len(m.Responses) == 0 {
		return &Response{Provider: "mock"}, nil
	}
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}
