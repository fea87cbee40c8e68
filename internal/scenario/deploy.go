package scenario

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/txverify/internal/config"
	"github.com/0xmhha/txverify/internal/contract"
	"github.com/0xmhha/txverify/internal/verify"
)

// Deploy deploys the Incrementer, then drives it through increment and reset
// and checks the stored number after each step
func Deploy(ctx context.Context, env *Env, res *Result) error {
	if err := env.RequireSigner(config.ScenarioDeploy); err != nil {
		return err
	}
	artifact, err := contract.IncrementerFrom(env.Config.ArtifactPath)
	if err != nil {
		return err
	}

	initial := new(big.Int).SetUint64(env.Config.InitialValue)
	step := new(big.Int).SetUint64(env.Config.IncrementBy)

	input, err := artifact.DeployInput(initial)
	if err != nil {
		return err
	}
	rec, err := env.Verifier.Deploy(ctx, input)
	res.Record(rec)
	if err != nil {
		return err
	}
	if err := res.Check("deployment succeeded", verify.Succeeded(rec.Receipt)); err != nil {
		return err
	}
	if err := res.Check("contract address assigned", verify.ContractCreated(rec.Receipt)); err != nil {
		return err
	}
	addr := rec.Receipt.ContractAddress
	env.Logger.WithField("contract", addr.Hex()).Info("contract deployed")

	code, err := env.Client.CodeAt(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("failed to get code: %w", err)
	}
	if err := res.Check("deployed code matches artifact", verify.CodeMatches(code, artifact.BytecodeHex())); err != nil {
		return err
	}
	if env.Config.ArtifactPath == "" {
		bundled := common.FromHex(contract.IncrementerRuntime)
		if err := res.Check("deployed code is the bundled runtime", verify.BytesEqual("deployed code", bundled, code)); err != nil {
			return err
		}
	}

	if err := checkNumber(ctx, env, res, artifact, addr, "number() is the constructor argument", initial); err != nil {
		return err
	}

	if err := transact(ctx, env, res, artifact, addr, "increment", step); err != nil {
		return err
	}
	want := new(big.Int).Add(initial, step)
	if err := checkNumber(ctx, env, res, artifact, addr, "increment() adds its argument", want); err != nil {
		return err
	}

	if err := transact(ctx, env, res, artifact, addr, "reset"); err != nil {
		return err
	}
	return checkNumber(ctx, env, res, artifact, addr, "reset() clears the number", new(big.Int))
}

func transact(ctx context.Context, env *Env, res *Result, a *contract.Artifact, addr common.Address, method string, args ...interface{}) error {
	data, err := a.Pack(method, args...)
	if err != nil {
		return err
	}
	rec, err := env.Verifier.Call(ctx, addr, data, nil)
	res.Record(rec)
	if err != nil {
		return err
	}
	return res.Check(method+"() succeeded", verify.Succeeded(rec.Receipt))
}

func checkNumber(ctx context.Context, env *Env, res *Result, a *contract.Artifact, addr common.Address, check string, want *big.Int) error {
	got, err := a.CallUint256(ctx, env.Client, addr, "number")
	if err != nil {
		return err
	}
	return res.Check(check, verify.BigEqual("number() of "+addr.Hex(), want, got))
}
