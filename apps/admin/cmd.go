package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/faculty"
	schedulersvc "github.com/trezcool/ratiba/services/scheduler"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf       *core.Config
	db         *sql.DB // postgres only
	facultySvc *faculty.Service
	scheduler  *schedulersvc.Scheduler
	validate   *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) against postgres")
	fmt.Println("  addfaculty -name NAME -email EMAIL [-department DEPT] [-subjects A,B] [-head] - add or update a faculty member")
	fmt.Println("  deactivate -email EMAIL - deactivate a faculty member")
	fmt.Println("  token -email EMAIL - print an API token for a faculty member")
	fmt.Println("  reconcile - complete the propagation of approved handovers")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addFacultyCmd := flag.NewFlagSet("addfaculty", flag.ContinueOnError)
	addFacultyName := addFacultyCmd.String("name", "", "The member's full name.")
	addFacultyEmail := addFacultyCmd.String("email", "", "The member's email, used to find an existing member.")
	addFacultyDept := addFacultyCmd.String("department", "", "The member's department.")
	addFacultySubjects := addFacultyCmd.String("subjects", "", "Comma separated subjects the member can teach.")
	addFacultyHead := addFacultyCmd.Bool("head", false, "Make the member a department head.")

	deactivateCmd := flag.NewFlagSet("deactivate", flag.ContinueOnError)
	deactivateEmail := deactivateCmd.String("email", "", "The member's email.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenEmail := tokenCmd.String("email", "", "The member's email.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addfaculty":
		if err := addFacultyCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addFacultyName == "" || *addFacultyEmail == "" {
			addFacultyCmd.Usage()
			return errHelp
		}
		var subjects []string
		if *addFacultySubjects != "" {
			subjects = strings.Split(*addFacultySubjects, ",")
		}
		return cli.addFaculty(faculty.NewFaculty{
			Name:       *addFacultyName,
			Email:      *addFacultyEmail,
			Department: *addFacultyDept,
			Subjects:   subjects,
			Head:       *addFacultyHead,
		})

	case "deactivate":
		if err := deactivateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *deactivateEmail == "" {
			deactivateCmd.Usage()
			return errHelp
		}
		return cli.deactivate(*deactivateEmail)

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenEmail == "" {
			tokenCmd.Usage()
			return errHelp
		}
		token, err := cli.token(*tokenEmail)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil

	case "reconcile":
		n, err := cli.reconcile()
		fmt.Printf("%d handover(s) reconciled\n", n)
		return err

	default:
		cli.printUsage()
		return errHelp
	}
}
