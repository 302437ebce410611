package state

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ChecksumVersion is bumped whenever the canonical representation changes.
const ChecksumVersion = 1

// Checksum computes a deterministic blake2b-256 digest of the snapshot. Two states
// with the same checksum hold the same boards, flip, effects and history.
func Checksum(g *GameState) (string, error) {
	data, err := canonicalRepresentation(g)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalRepresentation writes one line per entity in a fixed order so the
// result does not depend on map iteration or on int/float payload decoding.
func canonicalRepresentation(g *GameState) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "V:%d\n", ChecksumVersion)
	fmt.Fprintf(&buf, "GAME:%s|%d|%s|%s|%s\n",
		g.MatchID, g.TurnNumber, g.Phase, g.CurrentPlayerID, g.FirstPlayerID)

	for _, p := range g.Players() {
		fmt.Fprintf(&buf, "PLAYER:%s|%t|%t\n", p.PlayerID, p.EnergyAttachedThisTurn, p.SetupComplete)
		fmt.Fprintf(&buf, "  DECK:%s\n", strings.Join(p.Deck, ","))
		fmt.Fprintf(&buf, "  HAND:%s\n", strings.Join(p.Hand, ","))
		fmt.Fprintf(&buf, "  PRIZES:%s\n", strings.Join(p.Prizes, ","))
		fmt.Fprintf(&buf, "  DISCARD:%s\n", strings.Join(p.Discard, ","))
		for _, c := range p.InPlay() {
			statuses := make([]string, len(c.StatusEffects))
			for i, s := range c.StatusEffects {
				statuses[i] = string(s)
			}
			fmt.Fprintf(&buf, "  POKEMON:%s|%s|%s|%d/%d|%d|%d|%d\n",
				c.InstanceID, c.CardID, c.Position, c.CurrentHP, c.MaxHP,
				c.PoisonDamage, c.EvolvedAtTurn, c.PlayedAtTurn)
			fmt.Fprintf(&buf, "    ENERGY:%s\n", strings.Join(c.AttachedEnergy, ","))
			fmt.Fprintf(&buf, "    STATUS:%s\n", strings.Join(statuses, ","))
			fmt.Fprintf(&buf, "    CHAIN:%s\n", strings.Join(c.EvolutionChain, ","))
		}
	}

	if g.CoinFlip != nil {
		flip, err := json.Marshal(g.CoinFlip)
		if err != nil {
			return nil, fmt.Errorf("failed to encode coin flip: %w", err)
		}
		fmt.Fprintf(&buf, "FLIP:%s\n", flip)
	}

	for _, e := range g.DamageEffects {
		fmt.Fprintf(&buf, "EFFECT:%s|%s|%d|%s|%d|%s\n",
			e.PlayerID, e.InstanceID, e.ExpiresAtTurn, e.Kind, e.Amount, e.Source)
	}
	fmt.Fprintf(&buf, "ABILITIES:%s\n", strings.Join(g.AbilitiesUsed, ","))

	for _, a := range g.ActionHistory {
		// encoding/json sorts map keys and prints whole float64 values without a
		// fraction, so payloads hash the same before and after a storage round trip.
		payload, err := json.Marshal(a.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload of action %s: %w", a.ID, err)
		}
		fmt.Fprintf(&buf, "ACTION:%s|%s|%s|%s|%s\n",
			a.ID, a.PlayerID, a.ActionType, a.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z"), payload)
	}

	return buf.Bytes(), nil
}
