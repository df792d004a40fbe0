// Package sawmill summarizes application logs into executive reports using
// a local LLM served by Ollama.
//
// Quick start:
//
//	s, err := sawmill.New(ctx, sawmill.WithModel("llama3.1:8b"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	report, _ := s.Analyze(ctx, []string{
//	    "ERROR UserService connection refused (host=db-primary)",
//	    "WARN  PaymentService slow response 2100ms",
//	})
//	fmt.Println(report.Health) // Degraded
//	fmt.Println(report.Analysis)
//
// The Sawmill instance is safe for concurrent use. Create once, reuse across
// batches. See the README for full documentation.
package sawmill
