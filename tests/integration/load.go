package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

const (
	baseURL        = "http://localhost:8080"
	numAccounts    = 50         // Number of accounts to open
	numOperations  = 5000       // Total number of deposits and withdrawals
	maxConcurrency = 100        // Maximum number of concurrent requests
	initialBalance = "2000.00"  // Opening balance of each account
	maxCents       = 30000      // Largest amount tried, in cents
	accountBase    = 700000000  // First generated account number
	successColor   = "\033[32m" // Green
	errorColor     = "\033[31m" // Red
	infoColor      = "\033[34m" // Blue
	resetColor     = "\033[0m"  // Reset color
)

type session struct {
	AccountNumber string
	Pin           string
	Token         string
}

type entry struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	Amount           string `json:"amount"`
	ResultingBalance string `json:"resulting_balance"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func main() {
	fmt.Printf("%sstarting a teller load test with %d accounts and %d operations%s\n",
		infoColor, numAccounts, numOperations, resetColor)

	sessions := openSessions(numAccounts)
	if len(sessions) == 0 {
		fmt.Printf("%sno sessions could be opened%s\n", errorColor, resetColor)
		return
	}
	fmt.Printf("%sOpened %d sessions%s\n", successColor, len(sessions), resetColor)

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	startTime := time.Now()
	var (
		mu           sync.Mutex
		successCount int
		rejected     = make(map[string]int)
		errorCount   int
	)

	for i := 0; i < numOperations; i++ {
		wg.Add(1)
		sem <- struct{}{} // Acquire semaphore

		go func(opNum int) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore

			s := sessions[rand.Intn(len(sessions))]

			path := "deposits"
			if rand.Intn(2) == 1 {
				path = "withdrawals"
			}
			cents := 1 + rand.Intn(maxCents)
			amount := fmt.Sprintf("%d.%02d", cents/100, cents%100)

			e, code, err := moveMoney(s.Token, path, amount)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errorCount++
				if opNum%100 == 0 {
					fmt.Printf("%sOperation failed: %v%s\n", errorColor, err, resetColor)
				}
			case code != "":
				rejected[code]++
			default:
				successCount++
				if opNum%500 == 0 {
					fmt.Printf("%sOperation %d: %s of %s on %s, balance %s%s\n",
						successColor, opNum, e.Kind, e.Amount, s.AccountNumber, e.ResultingBalance, resetColor)
				}
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(startTime)

	fmt.Printf("\n%s=== teller load test results ===%s\n", infoColor, resetColor)
	fmt.Printf("Total operations: %d\n", numOperations)
	fmt.Printf("Committed: %s%d%s\n", successColor, successCount, resetColor)
	for code, n := range rejected {
		fmt.Printf("Rejected (%s): %d\n", code, n)
	}
	fmt.Printf("Failed: %s%d%s\n", errorColor, errorCount, resetColor)
	fmt.Printf("Duration: %.2f seconds\n", duration.Seconds())
	fmt.Printf("Throughput: %.2f operations/second\n", float64(numOperations)/duration.Seconds())

	fmt.Printf("\n%sChecking mini statements...%s\n", infoColor, resetColor)
	checkStatements(sessions)
}

// openSessions opens count accounts and logs in to each
func openSessions(count int) []session {
	sessions := make([]session, 0, count)
	runID := rand.Intn(1000) * 1000

	for i := 0; i < count; i++ {
		s := session{
			AccountNumber: fmt.Sprintf("%d", accountBase+runID+i),
			Pin:           fmt.Sprintf("%04d", rand.Intn(10000)),
		}

		_, err := post("/accounts", map[string]string{
			"account_number":  s.AccountNumber,
			"holder_name":     "Load Tester",
			"pin":             s.Pin,
			"initial_balance": initialBalance,
		}, http.StatusCreated, nil)
		if err != nil {
			fmt.Printf("%sFailed to open account %s: %v%s\n", errorColor, s.AccountNumber, err, resetColor)
			continue
		}

		var login struct {
			Token string `json:"token"`
		}
		_, err = post("/sessions", map[string]string{
			"account_number": s.AccountNumber,
			"pin":            s.Pin,
		}, http.StatusCreated, &login)
		if err != nil {
			fmt.Printf("%sFailed to log in to %s: %v%s\n", errorColor, s.AccountNumber, err, resetColor)
			continue
		}

		s.Token = login.Token
		sessions = append(sessions, s)
	}

	return sessions
}

// moveMoney posts a deposit or withdrawal. A business rejection is reported
// through its error code rather than as an error.
func moveMoney(token, path, amount string) (entry, string, error) {
	var resp struct {
		Entry entry `json:"entry"`
	}

	code, err := post("/sessions/"+token+"/"+path, map[string]string{"amount": amount}, http.StatusCreated, &resp)
	return resp.Entry, code, err
}

// post sends body as JSON and decodes a response with status want into out.
// A 422 returns its error code with a nil error.
func post(path string, body interface{}, want int, out interface{}) (string, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %v", err)
	}

	resp, err := http.Post(baseURL+path, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var e errorBody
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			return "", fmt.Errorf("failed to decode error: %v", err)
		}
		return e.Code, nil
	}

	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status: %d, body: %s", resp.StatusCode, string(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return "", fmt.Errorf("failed to decode response: %v", err)
		}
	}
	return "", nil
}

// checkStatements prints the balance and mini statement of a few sessions
func checkStatements(sessions []session) {
	for i := 0; i < min(5, len(sessions)); i++ {
		s := sessions[rand.Intn(len(sessions))]

		resp, err := http.Get(fmt.Sprintf("%s/sessions/%s/statement", baseURL, s.Token))
		if err != nil {
			fmt.Printf("%sError retrieving statement for %s: %v%s\n", errorColor, s.AccountNumber, err, resetColor)
			continue
		}

		var statement struct {
			Balance string  `json:"balance"`
			Entries []entry `json:"entries"`
		}
		err = json.NewDecoder(resp.Body).Decode(&statement)
		resp.Body.Close()
		if err != nil {
			fmt.Printf("%sFailed to decode statement: %v%s\n", errorColor, err, resetColor)
			continue
		}

		fmt.Printf("%sAccount %s: balance %s%s\n", infoColor, s.AccountNumber, statement.Balance, resetColor)
		for _, e := range statement.Entries {
			fmt.Printf("  %-10s %10s -> %s\n", e.Kind, e.Amount, e.ResultingBalance)
		}
	}
}
