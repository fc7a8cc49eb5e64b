package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/robertprast/openr/routes"
)

var statusCommand = command{
	name:        "status",
	description: "print a peer/summary table for a running store",
	run:         runStatus,
}

func runStatus(args []string) error {
	flagSet := flag.NewFlagSet("status", flag.ExitOnError)
	addr := flagSet.String("addr", "localhost:8080", "host:port of the store's HTTP server")
	areaList := flagSet.String("areas", "", "comma-separated list of areas to summarize")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if *areaList == "" {
		return fmt.Errorf("-areas is required")
	}

	areas := strings.Split(*areaList, ",")
	query := ""

	for i, area := range areas {
		if i > 0 {
			query += "&"
		}

		query += "area=" + area
	}

	response, err := http.Get("http://" + *addr + "/summary?" + query)

	if err != nil {
		return err
	}

	defer response.Body.Close()

	var summaries []routes.AreaSummaryResponse

	if err := json.NewDecoder(response.Body).Decode(&summaries); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Area", "Keys", "Peers", "Peer States"})

	for _, summary := range summaries {
		peerStates := make([]string, 0, len(summary.Peers))

		for name, state := range summary.Peers {
			peerStates = append(peerStates, name+"="+state)
		}

		table.Append([]string{
			summary.Area,
			strconv.Itoa(summary.NumKeys),
			strconv.Itoa(summary.PeerCount),
			strings.Join(peerStates, ", "),
		})
	}

	table.Render()

	return nil
}
