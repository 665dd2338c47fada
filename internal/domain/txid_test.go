package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTxid = "ec28dcc449972aa6ff350dd4eec729d9bddea6a22367b274f6ad8287d0665368"

func TestParseTxid(t *testing.T) {
	txid, err := ParseTxid("  " + strings.ToUpper(sampleTxid) + "\n")
	require.NoError(t, err)
	assert.Equal(t, Txid(sampleTxid), txid)
	assert.Equal(t, "ec28dcc4..d0665368", txid.Short())

	for _, bad := range []string{"", "abcd", sampleTxid + "00", strings.Repeat("zz", 32)} {
		_, err := ParseTxid(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.Is(err, ErrInvalidTxid), bad)
	}
}

func TestDataSourceErrorUnwrap(t *testing.T) {
	err := error(&DataSourceError{Stage: StageOutspends, Txid: sampleTxid, Err: ErrMalformedResponse})

	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), "outspends")
	assert.Contains(t, err.Error(), sampleTxid)

	var dse *DataSourceError
	require.ErrorAs(t, err, &dse)
	assert.Equal(t, StageOutspends, dse.Stage)
}

func TestMatchReportLinks(t *testing.T) {
	r := &MatchReport{
		CoinJoin: sampleTxid,
		Matches: map[Txid]MatchEntry{
			"b": {Addresses: map[Address]Amount{"addr2": 2, "addr1": 1}, Total: 3},
			"a": {Addresses: map[Address]Amount{"addr3": 5}, Total: 5},
		},
	}

	assert.Equal(t, []Txid{"a", "b"}, r.Txids())
	assert.Equal(t, Amount(8), r.LinkedValue())

	links := r.Links()
	require.Len(t, links, 3)
	assert.Equal(t, Link{CoinJoin: sampleTxid, Spender: "a", Address: "addr3", Value: 5}, links[0])
	assert.Equal(t, Address("addr1"), links[1].Address)
	assert.Equal(t, Address("addr2"), links[2].Address)
}
