package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/dicomnode/pipeline/client"
)

func echoCommand() *cli.Command {
	return &cli.Command{
		Name:      "echo",
		Usage:     "Send a C-ECHO DIMSE message to verify connectivity with an SCP",
		ArgsUsage: "<ip> <port> <scp_ae> <scu_ae>",
		Action:    runEcho,
	}
}

func runEcho(c *cli.Context) error {
	args := c.Args()
	if args.Len() < 4 {
		return cli.Exit("echo: expected <ip> <port> <scp_ae> <scu_ae>", 1)
	}

	ip := args.Get(0)
	var port int
	if _, err := fmt.Sscanf(args.Get(1), "%d", &port); err != nil {
		return cli.Exit(fmt.Sprintf("echo: invalid port %q", args.Get(1)), 1)
	}
	scpAE := args.Get(2)
	scuAE := args.Get(3)

	assoc, err := client.Connect(fmt.Sprintf("%s:%d", ip, port), client.Config{
		CallingAETitle: scuAE,
		CalledAETitle:  scpAE,
	})
	if err != nil {
		return fmt.Errorf("echo: connect to %s:%d: %w", ip, port, err)
	}
	defer assoc.Close()

	resp, err := assoc.SendCEcho(1)
	if err != nil {
		return fmt.Errorf("echo: C-ECHO failed: %w", err)
	}

	fmt.Printf("C-ECHO completed with status 0x%04x\n", resp.Status)
	if resp.Status != 0x0000 {
		return cli.Exit(fmt.Sprintf("echo: C-ECHO failed with status 0x%04x", resp.Status), 1)
	}
	return nil
}
