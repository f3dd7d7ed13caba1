package stateroot

import (
	"encoding/binary"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/poolhouse-labs/stakewatch/pkg/utils"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
)

// Merkle leaf prefixes keep structurally different leaves from colliding.
var (
	leafPrefixHeight = []byte("_HEIGHT_")
	leafPrefixTable  = []byte("_TABLE_")
	leafPrefixRecord = []byte("_RECORD_")
)

// Generate merkleizes a committed change set into a keccak256 root. The
// change set is already in sorted-id order per table, so identical replays
// yield identical roots.
func Generate(height uint64, cs *storage.ChangeSet) (string, error) {
	leaves := [][]byte{
		append(leafPrefixHeight, binary.BigEndian.AppendUint64([]byte{}, height)...),
	}

	for _, table := range tableLeaves(cs) {
		if len(table.records) == 0 {
			continue
		}
		leaf, err := encodeTableLeaf(table)
		if err != nil {
			return "", err
		}
		leaves = append(leaves, leaf)
	}

	tree, err := merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to build state root tree")
	}
	return utils.ConvertBytesToString(tree.Root()), nil
}

type tableInput struct {
	name    string
	records []record
}

type record struct {
	id    string
	value interface{}
}

// encodeTableLeaf rolls a table's dirty records into one sub-tree and embeds
// its root as the table leaf.
func encodeTableLeaf(table tableInput) ([]byte, error) {
	subLeaves := make([][]byte, 0, len(table.records))
	for _, rec := range table.records {
		encoded, err := json.Marshal(rec.value)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s record %s", table.name, rec.id)
		}
		leaf := append([]byte{}, leafPrefixRecord...)
		leaf = append(leaf, []byte(rec.id)...)
		leaf = append(leaf, encoded...)
		subLeaves = append(subLeaves, leaf)
	}
	subTree, err := merkletree.NewTree(
		merkletree.WithData(subLeaves),
		merkletree.WithHashType(keccak256.New()),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to merkleize table %s", table.name)
	}
	leaf := append([]byte{}, leafPrefixTable...)
	leaf = append(leaf, []byte(table.name)...)
	leaf = append(leaf, subTree.Root()...)
	return leaf, nil
}

func tableLeaves(cs *storage.ChangeSet) []tableInput {
	tables := make([]tableInput, 0, 10)

	global := tableInput{name: "global_state"}
	if cs.GlobalState != nil {
		global.records = append(global.records, record{id: cs.GlobalState.ID, value: cs.GlobalState})
	}
	tables = append(tables, global)

	accounts := tableInput{name: "accounts"}
	for _, a := range cs.Accounts {
		accounts.records = append(accounts.records, record{id: a.ID, value: a})
	}
	tables = append(tables, accounts)

	basePools := tableInput{name: "base_pools"}
	for _, p := range cs.BasePools {
		basePools.records = append(basePools.records, record{id: p.ID, value: p})
	}
	tables = append(tables, basePools)

	stakePools := tableInput{name: "stake_pools"}
	for _, p := range cs.StakePools {
		stakePools.records = append(stakePools.records, record{id: p.PoolID, value: p})
	}
	tables = append(tables, stakePools)

	vaults := tableInput{name: "vaults"}
	for _, v := range cs.Vaults {
		vaults.records = append(vaults.records, record{id: v.PoolID, value: v})
	}
	tables = append(tables, vaults)

	delegations := tableInput{name: "delegations"}
	for _, d := range cs.Delegations {
		delegations.records = append(delegations.records, record{id: d.ID, value: d})
	}
	tables = append(tables, delegations)

	workers := tableInput{name: "workers"}
	for _, w := range cs.Workers {
		workers.records = append(workers.records, record{id: w.ID, value: w})
	}
	tables = append(tables, workers)

	sessions := tableInput{name: "sessions"}
	for _, sess := range cs.Sessions {
		sessions.records = append(sessions.records, record{id: sess.ID, value: sess})
	}
	tables = append(tables, sessions)

	nfts := tableInput{name: "nfts"}
	for _, n := range cs.Nfts {
		nfts.records = append(nfts.records, record{id: n.ID, value: n})
	}
	tables = append(tables, nfts)

	whitelists := tableInput{name: "whitelists"}
	for _, w := range cs.Whitelists {
		whitelists.records = append(whitelists.records, record{id: w.ID, value: w})
	}
	for _, id := range cs.WhitelistDeletes {
		whitelists.records = append(whitelists.records, record{id: id, value: "deleted"})
	}
	tables = append(tables, whitelists)

	return tables
}
