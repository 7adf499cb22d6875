package batch_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/taskops/batch"
	"github.com/jonwraymond/taskops/task"
)

func ExampleExecutor() {
	done := make(chan batch.Result, 1)
	exec := batch.New(batch.Config{BatchSize: 2, MaxWorkers: 2},
		batch.WithResultHandler(func(r batch.Result) { done <- r }),
	)

	for _, n := range []int{2, 3} {
		_ = exec.Submit(task.New(task.Func(func(context.Context) (any, error) {
			return n * n, nil
		})))
	}

	res := <-done
	fmt.Println(res.Size(), res.Succeeded, res.Outcomes[0].Value, res.Outcomes[1].Value)

	_ = exec.Close(context.Background())
	// Output:
	// 2 2 4 9
}
