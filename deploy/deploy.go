// Package deploy runs an ordered deployment plan against a contract toolchain.
package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Deployment is a confirmed contract creation.
type Deployment struct {
	Contract    string
	Address     common.Address
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	DeployedAt  time.Time
}

// Factory deploys one compiled contract.
type Factory interface {
	// DeployAndConfirm sends the creation transaction and blocks until it is mined.
	DeployAndConfirm(ctx context.Context, args ...interface{}) (Deployment, error)
}

type FactoryResolver interface {
	ResolveFactory(name string) (Factory, error)
}

type Step struct {
	ID    string
	Label string
	Args  []interface{}
}

// DefaultPlan deploys the RFP strategy and then the Allo core contract, without constructor arguments.
var DefaultPlan = []Step{
	{ID: "RFPSimpleStrategy", Label: "RFPSimpleStrategy"},
	{ID: "Allo", Label: "Allo"},
}

type Result struct {
	Deployments []Deployment
}

func FormatLine(label string, addr common.Address) string {
	return fmt.Sprintf("%s deployed to: %s", label, addr.Hex())
}

type Driver struct {
	log      *logrus.Entry
	resolver FactoryResolver
}

func NewDriver(log *logrus.Entry, resolver FactoryResolver) *Driver {
	return &Driver{
		log:      log,
		resolver: resolver,
	}
}

// Run executes plan in order and stops at the first failure. onDeployed is called
// after every confirmed step, before the next one starts. On failure the returned
// Result still holds the deployments that already went through.
func (d *Driver) Run(ctx context.Context, plan []Step, onDeployed func(Step, Deployment)) (Result, error) {
	var res Result
	for _, step := range plan {
		log := d.log.WithField("contract", step.ID)

		factory, err := d.resolver.ResolveFactory(step.ID)
		if err != nil {
			return res, &Error{Kind: KindArtifactNotFound, Contract: step.ID, Err: err}
		}

		log.Debug("deploying")
		dep, err := factory.DeployAndConfirm(ctx, step.Args...)
		if err != nil {
			return res, &Error{Kind: KindDeployment, Contract: step.ID, Err: err}
		}
		log.WithField("address", dep.Address.Hex()).WithField("tx", dep.TxHash.Hex()).Info("deployed")

		res.Deployments = append(res.Deployments, dep)
		if onDeployed != nil {
			onDeployed(step, dep)
		}
	}
	return res, nil
}
