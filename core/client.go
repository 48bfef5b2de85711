package core

// client.go – the client-facing transaction builders (spec.md §6
// "transfer_coin / move_call / publish / split_coin / merge_coins"): each
// shapes an unsigned TransactionData for the caller to sign (core/wallet.go)
// and resubmit to GatewayState.ExecuteTransaction. Grounded on
// common_structs.go's NewTransferKind/NewCallKind/NewPublishKind
// constructors — these builders just assemble the MoveCall/Transfer/
// MoveModulePublish payloads the framework executor already knows how to run
// (core/executor.go's coin::split_vec / coin::join dispatch).

// TransferCoin builds a TransactionData moving a single owned object to
// recipient.
func TransferCoin(sender Address, coin ObjectRef, recipient Address, gas ObjectRef) TransactionData {
	kind := NewTransferKind(Transfer{Recipient: recipient, ObjectRef: coin})
	return TransactionData{Kind: NewSingleTransactionKind(kind), Sender: sender, GasPayment: gas}
}

// MoveCallTx builds a TransactionData invoking an arbitrary published Move
// function. SplitCoinTx/MergeCoinsTx are thin convenience wrappers around
// this for the framework's coin module.
func MoveCallTx(sender Address, call MoveCall, gas ObjectRef) TransactionData {
	kind := NewCallKind(call)
	return TransactionData{Kind: NewSingleTransactionKind(kind), Sender: sender, GasPayment: gas}
}

// PublishTx builds a TransactionData publishing a new Move package.
func PublishTx(sender Address, modules [][]byte, gasBudget uint64, gas ObjectRef) TransactionData {
	kind := NewPublishKind(MoveModulePublish{Modules: modules, GasBudget: gasBudget})
	return TransactionData{Kind: NewSingleTransactionKind(kind), Sender: sender, GasPayment: gas}
}

// SplitCoinTx builds a TransactionData calling the framework's
// 0x2::coin::split_vec on coin, carving out one new coin per amount in
// splitAmounts.
func SplitCoinTx(sender Address, coin ObjectRef, splitAmounts []uint64, gasBudget uint64, gas ObjectRef) TransactionData {
	call := MoveCall{
		Package:    ObjectRef{ID: FrameworkPackageID},
		Module:     CoinModuleName,
		Function:   FuncSplitVec,
		ObjectArgs: []ObjectRef{coin},
		PureArgs:   [][]byte{EncodeU64Vec(splitAmounts)},
		GasBudget:  gasBudget,
	}
	return MoveCallTx(sender, call, gas)
}

// MergeCoinsTx builds a TransactionData calling the framework's
// 0x2::coin::join, folding source into primary.
func MergeCoinsTx(sender Address, primary, source ObjectRef, gasBudget uint64, gas ObjectRef) TransactionData {
	call := MoveCall{
		Package:    ObjectRef{ID: FrameworkPackageID},
		Module:     CoinModuleName,
		Function:   FuncJoin,
		ObjectArgs: []ObjectRef{primary, source},
		GasBudget:  gasBudget,
	}
	return MoveCallTx(sender, call, gas)
}
