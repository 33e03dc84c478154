package app

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

// converts string to int safely
func parsePositiveInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func GetWorkerCount() int {
	//default number of workers = number of cpus. Otherwise can be overwritten with WORKERS env var
	n := runtime.NumCPU()
	if v := os.Getenv("WORKERS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	return n
}
