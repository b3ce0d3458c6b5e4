package main

import (
	"fmt"
	"log"
	"os"
)

const usageText = `Usage: riepilogo <command> [flags]

Commands:
  invia       validate, sign and send a report to the intake mailbox
  genera      render a report file from its JSON entity graph
  controlla   run the structural checks against an existing report file
  nome        derive the canonical file name for a report period
  identita    manage the signing credential store
  ponte       query the signer bridge daemon
  storico     show the transmission journal

Run 'riepilogo <command> -h' for the flags of one command.`

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usageText)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "invia":
		err = runInvia(os.Args[2:])
	case "genera":
		err = runGenera(os.Args[2:])
	case "controlla":
		err = runControlla(os.Args[2:])
	case "nome":
		err = runNome(os.Args[2:])
	case "identita":
		err = runIdentita(os.Args[2:])
	case "ponte":
		err = runPonte(os.Args[2:])
	case "storico":
		err = runStorico(os.Args[2:])
	case "help", "-h", "-help", "--help":
		fmt.Println(usageText)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usageText)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("riepilogo %s: %v", os.Args[1], err)
	}
}
