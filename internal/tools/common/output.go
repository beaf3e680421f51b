package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

type CIResult struct {
	OK      bool     `json:"ok"`
	Check   string   `json:"check"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func PrintCIResult(ok bool, check string, details []string, err error) {
	WriteCIResult(os.Stdout, ok, check, details, err)
}

func WriteCIResult(w io.Writer, ok bool, check string, details []string, err error) {
	res := CIResult{OK: ok, Check: check, Details: details}
	if err != nil {
		res.Error = err.Error()
	}
	enc := json.NewEncoder(w)
	if encErr := enc.Encode(res); encErr != nil {
		_, _ = fmt.Fprintf(w, "{\"ok\":false,\"check\":%q,\"error\":%q}\n", check, encErr.Error())
	}
}
