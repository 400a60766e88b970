package etherman

import (
	"context"
	"errors"

	"github.com/TEENet-io/bridge-validator/contracts/nftbridge"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
)

var ErrBridgeStubNotDeployed = errors.New("bridge stub has no code after deployment")

// DeployBridgeStub deploys a stand-in bridge contract paid by account i and
// commits the block. The stub publishes authorities through getAuthorities(),
// reports every token as locked, emits Validated(tokenId, receiver,
// msg.sender) on validate() and NFTUnlocked(tokenId, receiver) on either
// bridgeReceive(). Any other call reverts.
func (chain *SimulatedChain) DeployBridgeStub(ctx context.Context, i int, authorities []common.Address) (common.Address, error) {
	code, err := bridgeStubDeployCode(authorities)
	if err != nil {
		return common.Address{}, err
	}
	parsed, err := nftbridge.ParseABI(nftbridge.Native)
	if err != nil {
		return common.Address{}, err
	}

	opts := *chain.Accounts[i]
	opts.Context = ctx
	address, _, _, err := bind.DeployContract(&opts, parsed, code, chain.Backend.Client())
	if err != nil {
		return common.Address{}, err
	}
	chain.Backend.Commit()

	deployed, err := chain.Backend.Client().CodeAt(ctx, address, nil)
	if err != nil {
		return common.Address{}, err
	}
	if len(deployed) == 0 {
		return common.Address{}, ErrBridgeStubNotDeployed
	}
	return address, nil
}

func bridgeStubDeployCode(authorities []common.Address) ([]byte, error) {
	runtime, err := bridgeStubRuntime(authorities)
	if err != nil {
		return nil, err
	}

	// copy the runtime code into memory and return it
	size := uint16Bytes(len(runtime))
	init := newEVMAssembler()
	init.push(size)
	init.pushLabel("runtime")
	init.push([]byte{0x00})
	init.op(vm.CODECOPY)
	init.push(size)
	init.push([]byte{0x00})
	init.op(vm.RETURN)
	init.data("runtime", runtime)
	return init.assemble()
}

func bridgeStubRuntime(authorities []common.Address) ([]byte, error) {
	native, err := nftbridge.ParseABI(nftbridge.Native)
	if err != nil {
		return nil, err
	}
	receiver, err := nftbridge.ParseABI(nftbridge.Receiver)
	if err != nil {
		return nil, err
	}
	list, err := native.Methods["getAuthorities"].Outputs.Pack(authorities)
	if err != nil {
		return nil, err
	}

	a := newEVMAssembler()

	// selector = calldata[0:4]
	a.push([]byte{0x00})
	a.op(vm.CALLDATALOAD)
	a.push([]byte{0xe0})
	a.op(vm.SHR)
	for _, route := range []struct {
		selector []byte
		label    string
	}{
		{native.Methods["getAuthorities"].ID, "getAuthorities"},
		{native.Methods["lockedNFTs"].ID, "lockedNFTs"},
		{native.Methods["validate"].ID, "validate"},
		{native.Methods["bridgeReceive"].ID, "bridgeReceive"},
		{receiver.Methods["bridgeReceive"].ID, "bridgeReceive"},
	} {
		a.op(vm.DUP1)
		a.push(route.selector)
		a.op(vm.EQ)
		a.pushLabel(route.label)
		a.op(vm.JUMPI)
	}
	a.push([]byte{0x00})
	a.op(vm.DUP1, vm.REVERT)

	size := uint16Bytes(len(list))
	a.jumpdest("getAuthorities")
	a.push(size)
	a.pushLabel("list")
	a.push([]byte{0x00})
	a.op(vm.CODECOPY)
	a.push(size)
	a.push([]byte{0x00})
	a.op(vm.RETURN)

	a.jumpdest("lockedNFTs")
	a.push([]byte{0x01})
	a.push([]byte{0x00})
	a.op(vm.MSTORE)
	a.push([]byte{0x20})
	a.push([]byte{0x00})
	a.op(vm.RETURN)

	// memory = tokenId, receiver, caller
	a.jumpdest("validate")
	a.push([]byte{0x40})
	a.push([]byte{0x04})
	a.push([]byte{0x00})
	a.op(vm.CALLDATACOPY)
	a.op(vm.CALLER)
	a.push([]byte{0x40})
	a.op(vm.MSTORE)
	a.push(nftbridge.ValidatedSignatureHash.Bytes())
	a.push([]byte{0x60})
	a.push([]byte{0x00})
	a.op(vm.LOG1, vm.STOP)

	// memory = tokenId, receiver
	a.jumpdest("bridgeReceive")
	a.push([]byte{0x40})
	a.push([]byte{0x04})
	a.push([]byte{0x00})
	a.op(vm.CALLDATACOPY)
	a.push(nftbridge.NFTUnlockedSignatureHash.Bytes())
	a.push([]byte{0x40})
	a.push([]byte{0x00})
	a.op(vm.LOG1, vm.STOP)

	a.data("list", list)
	return a.assemble()
}

// evmAssembler builds bytecode with named offsets. Label references are
// always PUSH2 and patched by assemble.
type evmAssembler struct {
	code   []byte
	labels map[string]int
	refs   map[int]string
}

func newEVMAssembler() *evmAssembler {
	return &evmAssembler{
		labels: make(map[string]int),
		refs:   make(map[int]string),
	}
}

func (a *evmAssembler) op(ops ...vm.OpCode) {
	for _, o := range ops {
		a.code = append(a.code, byte(o))
	}
}

// push emits PUSHn with n = len(data), 1 <= n <= 32.
func (a *evmAssembler) push(data []byte) {
	a.code = append(a.code, byte(vm.PUSH1)+byte(len(data)-1))
	a.code = append(a.code, data...)
}

func (a *evmAssembler) pushLabel(label string) {
	a.op(vm.PUSH2)
	a.refs[len(a.code)] = label
	a.code = append(a.code, 0x00, 0x00)
}

func (a *evmAssembler) jumpdest(label string) {
	a.labels[label] = len(a.code)
	a.op(vm.JUMPDEST)
}

func (a *evmAssembler) data(label string, data []byte) {
	a.labels[label] = len(a.code)
	a.code = append(a.code, data...)
}

func (a *evmAssembler) assemble() ([]byte, error) {
	for at, label := range a.refs {
		offset, ok := a.labels[label]
		if !ok {
			return nil, errors.New("undefined label " + label)
		}
		copy(a.code[at:at+2], uint16Bytes(offset))
	}
	return a.code, nil
}

func uint16Bytes(n int) []byte {
	return []byte{byte(n >> 8), byte(n)}
}
