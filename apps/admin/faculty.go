package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core/faculty"
)

// addFaculty updates or creates a faculty member.
func (cli *commandLine) addFaculty(nf faculty.NewFaculty) error {
	if err := nf.Validate(cli.validate); err != nil {
		return err
	}
	fac, err := cli.facultySvc.UpdateOrCreate(context.Background(), nf)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s> saved with id %s\n", fac.Name, fac.Email, fac.ID)
	return nil
}

func (cli *commandLine) deactivate(email string) error {
	ctx := context.Background()
	fac, err := cli.facultySvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	_, err = cli.facultySvc.SetActive(ctx, fac.ID, false)
	return err
}

// token signs an API token for the member with the given email.
func (cli *commandLine) token(email string) (string, error) {
	fac, err := cli.facultySvc.GetByEmail(context.Background(), email)
	if err != nil {
		return "", err
	}
	if !fac.IsActive {
		return "", errors.Errorf("%s is not active", fac.Email)
	}
	return echoapi.GenerateToken(cli.conf, echoapi.GetFacultyClaims(cli.conf, fac))
}

func (cli *commandLine) reconcile() (int, error) {
	return cli.scheduler.RunOnce(context.Background())
}
