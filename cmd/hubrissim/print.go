package main

import (
	"fmt"
	"os"

	"github.com/oxidecomputer/hubris-go/internal/kernel"
)

func printStatus(rows []kernel.TaskStatus) {
	for _, st := range rows {
		if st.Kind == kernel.Faulted && st.Fault != nil {
			fmt.Fprintf(os.Stdout, "%-20s %-10s %s\n", st.ID, st.Kind, st.Fault)
			continue
		}
		fmt.Fprintf(os.Stdout, "%-20s %-10s\n", st.ID, st.Kind)
	}
}
