package state_test

import (
	"testing"

	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/genesis"
	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/coreledger/powchain/foundation/blockchain/state"
	"github.com/coreledger/powchain/foundation/blockchain/storage"
)

func newTestState(t *testing.T) *state.State {
	t.Helper()

	dir := t.TempDir()
	strg, err := storage.Open(dir)
	if err != nil {
		t.Fatalf("opening storage: %s", err)
	}
	t.Cleanup(func() { strg.Close() })

	s, err := state.New(state.Config{Storage: strg})
	if err != nil {
		t.Fatalf("constructing state: %s", err)
	}
	return s
}

// mine searches for the nonce that solves block's proof of work against
// its own difficulty target, the same brute-force loop the Miner worker
// runs, just without cancellation.
func mine(t *testing.T, block database.Block) database.Block {
	t.Helper()

	for nonce := uint64(0); ; nonce++ {
		block.Header.Nonce = nonce
		if block.ID().LessOrEqual(block.Header.Difficulty) {
			return block
		}
	}
}

func mustKeyPair(t *testing.T) signature.KeyPair {
	t.Helper()
	kp, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}
	return kp
}

func signTx(t *testing.T, kp signature.KeyPair, nonce uint64, to database.Address, value uint64) database.SignedTx {
	t.Helper()
	tx := database.NewUserTx(nonce, 1, 1, to, database.NewBalance(value), nil)
	return tx.Sign(kp)
}

// buildChild assembles (but does not mine or insert) a block extending the
// current tip, crediting miner the coinbase reward for trans.
func buildChild(t *testing.T, s *state.State, miner database.Address, trans []database.SignedTx) database.Block {
	t.Helper()

	block, err := s.PrepareBlock(miner, nextTimestamp(t, s), trans)
	if err != nil {
		t.Fatalf("preparing block: %s", err)
	}
	return block
}

// mineChildOn is like buildChild but extends parentID explicitly (with its
// already-known header) rather than the current tip, so tests can
// construct competing forks and not-yet-committed orphan chains.
func mineChildOn(t *testing.T, s *state.State, parentID database.Hash, parentHeader database.BlockHeader, miner database.Address, trans []database.SignedTx) database.Block {
	t.Helper()

	unsigned, err := state.PrepareChild(s.Store(), parentID, parentHeader, miner, parentHeader.TimestampMs+1, trans)
	if err != nil {
		t.Fatalf("preparing child block: %s", err)
	}
	return mine(t, unsigned)
}

// nextTimestamp returns a timestamp guaranteed to exceed the current tip's.
func nextTimestamp(t *testing.T, s *state.State) uint64 {
	t.Helper()
	tip, _, _ := s.Tip()
	block, ok, err := s.GetBlock(tip)
	if err != nil || !ok {
		t.Fatalf("loading tip block: %v %v", ok, err)
	}
	return block.Header.TimestampMs + 1
}

func Test_GenesisBoot(t *testing.T) {
	s := newTestState(t)

	tip, height, _ := s.Tip()
	if height != 0 {
		t.Fatalf("expected genesis height 0, got %d", height)
	}

	acc, err := s.GetAccount(genesis.GodAddress())
	if err != nil {
		t.Fatalf("reading god account: %s", err)
	}
	if acc.Balance.Cmp(genesis.GodBalance()) != 0 {
		t.Fatalf("expected god balance %s, got %s", genesis.GodBalance(), acc.Balance)
	}

	if _, ok, err := s.GetBlock(tip); err != nil || !ok {
		t.Fatalf("expected genesis block to be retrievable: %v %v", ok, err)
	}
}

func Test_MiningRewardCreditsMiner(t *testing.T) {
	s := newTestState(t)

	miner := mustKeyPair(t)
	block := mine(t, buildChild(t, s, miner.Address(), nil))

	result, err := s.InsertBlock(block)
	if err != nil {
		t.Fatalf("inserting block: %s", err)
	}
	if result != state.Accepted {
		t.Fatalf("expected Accepted, got %s", result)
	}

	acc, err := s.GetAccount(miner.Address())
	if err != nil {
		t.Fatalf("reading miner account: %s", err)
	}
	if acc.Balance.Cmp(database.NewBalance(genesis.MiningReward)) != 0 {
		t.Fatalf("expected miner balance %d, got %s", genesis.MiningReward, acc.Balance)
	}
}

func Test_SimpleTransferIsApplied(t *testing.T) {
	s := newTestState(t)

	alice := mustKeyPair(t)
	minerA := mustKeyPair(t)
	minerB := mustKeyPair(t)

	fund := mine(t, buildChild(t, s, minerA.Address(), nil))
	if result, err := s.InsertBlock(fund); err != nil || result != state.Accepted {
		t.Fatalf("funding block: result=%v err=%v", result, err)
	}

	// minerA now holds the reward and spends 10 of it to alice in a block
	// mined by minerB; alice's, the sender's and the block miner's balances
	// are all checked below.
	tx := signTx(t, minerA, 0, alice.Address(), 10)
	block := mine(t, buildChild(t, s, minerB.Address(), []database.SignedTx{tx}))

	result, err := s.InsertBlock(block)
	if err != nil {
		t.Fatalf("inserting transfer block: %s", err)
	}
	if result != state.Accepted {
		t.Fatalf("expected Accepted, got %s", result)
	}

	aliceAcc, err := s.GetAccount(alice.Address())
	if err != nil {
		t.Fatalf("reading alice account: %s", err)
	}
	if aliceAcc.Balance.Cmp(database.NewBalance(10)) != 0 {
		t.Fatalf("expected alice balance 10, got %s", aliceAcc.Balance)
	}

	senderAcc, err := s.GetAccount(minerA.Address())
	if err != nil {
		t.Fatalf("reading sender account: %s", err)
	}
	wantSender := database.SubBalance(database.NewBalance(genesis.MiningReward), tx.TotalCost())
	if senderAcc.Balance.Cmp(wantSender) != 0 {
		t.Fatalf("expected sender balance %s, got %s", wantSender, senderAcc.Balance)
	}
	if senderAcc.Nonce != 1 {
		t.Fatalf("expected sender nonce 1, got %d", senderAcc.Nonce)
	}

	minerBAcc, err := s.GetAccount(minerB.Address())
	if err != nil {
		t.Fatalf("reading block miner account: %s", err)
	}
	wantMinerB := database.AddBalance(database.NewBalance(genesis.MiningReward), database.NewBalance(database.FixedFee))
	if minerBAcc.Balance.Cmp(wantMinerB) != 0 {
		t.Fatalf("expected block miner balance %s, got %s", wantMinerB, minerBAcc.Balance)
	}
}

func Test_DoubleSpendSameNonceRejected(t *testing.T) {
	s := newTestState(t)

	alice := mustKeyPair(t)
	bob := mustKeyPair(t)
	carol := mustKeyPair(t)
	miner := mustKeyPair(t)

	fund := mine(t, buildChild(t, s, alice.Address(), nil))
	if result, err := s.InsertBlock(fund); err != nil || result != state.Accepted {
		t.Fatalf("funding block: result=%v err=%v", result, err)
	}

	tx1 := signTx(t, alice, 0, bob.Address(), 5)
	tx2 := signTx(t, alice, 0, carol.Address(), 5)

	// PrepareBlock refuses to assemble a block whose speculative execution
	// fails, so the double-spend block is assembled by hand; its state root
	// is never compared because execution fails at tx2 first.
	tip, _, _ := s.Tip()
	tipBlock, ok, err := s.GetBlock(tip)
	if err != nil || !ok {
		t.Fatalf("loading tip block: %v %v", ok, err)
	}
	unsigned := database.NewBlock(tip, state.DifficultyRule(tipBlock.Header), tipBlock.Header.TimestampMs+1, tipBlock.Header.StateRoot, miner.Address(), []database.SignedTx{tx1, tx2})
	block := mine(t, unsigned)

	result, err := s.InsertBlock(block)
	if err == nil {
		t.Fatalf("expected double-spend block to be rejected")
	}
	if result != state.Invalid {
		t.Fatalf("expected Invalid, got %s", result)
	}

	if _, height, _ := s.Tip(); height != 1 {
		t.Fatalf("expected tip height to remain 1 after rejected block, got %d", height)
	}
}

func Test_OrphanBlockParkedThenPromoted(t *testing.T) {
	s := newTestState(t)

	minerA := mustKeyPair(t)
	minerB := mustKeyPair(t)

	genesisTip, _, _ := s.Tip()
	genesisBlock, ok, err := s.GetBlock(genesisTip)
	if err != nil || !ok {
		t.Fatalf("loading genesis block: %v %v", ok, err)
	}

	block2 := mineChildOn(t, s, genesisTip, genesisBlock.Header, minerA.Address(), nil)
	block3 := mineChildOn(t, s, block2.ID(), block2.Header, minerB.Address(), nil)

	result, err := s.InsertBlock(block3)
	if err != nil {
		t.Fatalf("inserting orphan: %s", err)
	}
	if result != state.Orphan {
		t.Fatalf("expected Orphan, got %s", result)
	}

	if _, height, _ := s.Tip(); height != 0 {
		t.Fatalf("expected tip to remain genesis while block3 is orphaned, got height %d", height)
	}

	result, err = s.InsertBlock(block2)
	if err != nil {
		t.Fatalf("inserting block2: %s", err)
	}
	if result != state.Accepted {
		t.Fatalf("expected block2 Accepted, got %s", result)
	}

	tip, height, _ := s.Tip()
	if height != 2 {
		t.Fatalf("expected promoted orphan to advance tip to height 2, got %d", height)
	}
	if tip != block3.ID() {
		t.Fatalf("expected tip to be block3 after promotion, got %s", tip)
	}
}

func Test_EqualTotalDifficultyForkKeepsExistingTip(t *testing.T) {
	s := newTestState(t)

	minerA := mustKeyPair(t)
	minerB := mustKeyPair(t)

	genesisTip, _, _ := s.Tip()
	genesisBlock, ok, err := s.GetBlock(genesisTip)
	if err != nil || !ok {
		t.Fatalf("loading genesis block: %v %v", ok, err)
	}

	blockA := mineChildOn(t, s, genesisTip, genesisBlock.Header, minerA.Address(), nil)
	blockB := mineChildOn(t, s, genesisTip, genesisBlock.Header, minerB.Address(), nil)

	if result, err := s.InsertBlock(blockA); err != nil || result != state.Accepted {
		t.Fatalf("inserting blockA: result=%v err=%v", result, err)
	}

	tipAfterA, _, _ := s.Tip()
	if tipAfterA != blockA.ID() {
		t.Fatalf("expected blockA to become tip")
	}

	result, err := s.InsertBlock(blockB)
	if err != nil {
		t.Fatalf("inserting blockB: %s", err)
	}
	if result != state.Accepted {
		t.Fatalf("expected blockB to be individually valid, got %s", result)
	}

	tip, _, _ := s.Tip()
	if tip != blockA.ID() {
		t.Fatalf("expected equal-total-difficulty fork to keep the existing tip, got %s", tip)
	}
}

func Test_InsertKnownBlockReturnsAlreadyKnown(t *testing.T) {
	s := newTestState(t)

	miner := mustKeyPair(t)
	block := mine(t, buildChild(t, s, miner.Address(), nil))

	if result, err := s.InsertBlock(block); err != nil || result != state.Accepted {
		t.Fatalf("first insert: result=%v err=%v", result, err)
	}

	result, err := s.InsertBlock(block)
	if err != nil {
		t.Fatalf("re-inserting known block: %s", err)
	}
	if result != state.AlreadyKnown {
		t.Fatalf("expected AlreadyKnown, got %s", result)
	}
}

func Test_UnsolvedProofOfWorkRejected(t *testing.T) {
	s := newTestState(t)

	miner := mustKeyPair(t)
	block := buildChild(t, s, miner.Address(), nil)
	// Deliberately skip mining: nonce 0 essentially never solves the PoW.

	result, err := s.InsertBlock(block)
	if err == nil {
		t.Fatalf("expected unsolved block to be rejected")
	}
	if result != state.Invalid {
		t.Fatalf("expected Invalid, got %s", result)
	}
}
