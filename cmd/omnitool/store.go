package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/dicomnode/pipeline/client"
	"github.com/dicomnode/pipeline/tree"
)

func storeCommand() *cli.Command {
	return &cli.Command{
		Name:      "store",
		Usage:     "Send a C-STORE DIMSE message for every instance under <path>",
		ArgsUsage: "<ip> <port> <scp_ae> <scu_ae> <path>",
		Action:    runStore,
	}
}

func runStore(c *cli.Context) error {
	args := c.Args()
	if args.Len() < 5 {
		return cli.Exit("store: expected <ip> <port> <scp_ae> <scu_ae> <path>", 1)
	}

	ip := args.Get(0)
	var port int
	if _, err := fmt.Sscanf(args.Get(1), "%d", &port); err != nil {
		return cli.Exit(fmt.Sprintf("store: invalid port %q", args.Get(1)), 1)
	}
	scpAE := args.Get(2)
	scuAE := args.Get(3)
	path := args.Get(4)

	discovered, err := tree.Discover(path, false, func(skipped string, skipErr error) {
		fmt.Fprintf(c.App.ErrWriter, "store: skipping %s: %v\n", skipped, skipErr)
	})
	if err != nil {
		return fmt.Errorf("store: discover %s: %w", path, err)
	}

	address := client.Address{Host: ip, Port: port, AETitle: scpAE}
	status, err := client.SendImages(scuAE, address, discovered)
	if err != nil {
		return fmt.Errorf("store: could not connect to the SCP (ip=%s port=%d scp_ae=%s scu_ae=%s): %w", ip, port, scpAE, scuAE, err)
	}

	fmt.Printf("C-STORE completed with status 0x%04x\n", status)
	if status != 0x0000 {
		return cli.Exit(fmt.Sprintf("store: C-STORE failed with status 0x%04x", status), 1)
	}
	return nil
}
