// Copyright 2025 The framed Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/framed/framed/session"
	"github.com/framed/framed/transport"
)

type callCmdConfig struct {
	Type    string
	Address string
	Payload string
	Push    bool
	Timeout time.Duration
}

var callConfig callCmdConfig

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Issue a one-shot request against a framed server",
	Run: func(cmd *cobra.Command, args []string) {
		conn, err := transport.Dial(callConfig.Type, callConfig.Address, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to dial: %v\n", err)
			os.Exit(1)
		}

		s := session.New(conn, session.RoleClient, session.Config{}, nil)
		defer s.Close()

		ctx, cancel := context.WithTimeout(context.Background(), callConfig.Timeout)
		defer cancel()

		if callConfig.Push {
			if err := s.PushRaw(ctx, []byte(callConfig.Payload)); err != nil {
				fmt.Fprintf(os.Stderr, "push failed: %v\n", err)
				os.Exit(1)
			}
			return
		}

		resp, err := s.CallRaw(ctx, []byte(callConfig.Payload))
		if err != nil {
			fmt.Fprintf(os.Stderr, "call failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "%s\n", resp)
	},
	Example: "# framed call --address localhost:7230 --payload ping",
}

func init() {
	callCmd.Flags().StringVar(&callConfig.Type, "type", transport.TypeTCP, "Transport type (tcp/websocket)")
	callCmd.Flags().StringVar(&callConfig.Address, "address", "localhost:7230", "Server address")
	callCmd.Flags().StringVar(&callConfig.Payload, "payload", "", "Request payload")
	callCmd.Flags().BoolVar(&callConfig.Push, "push", false, "Send as one-way push instead of request")
	callCmd.Flags().DurationVar(&callConfig.Timeout, "timeout", 10*time.Second, "Overall timeout")
	rootCmd.AddCommand(callCmd)
}
