package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/scoreleague/internal/settlement-service/model"
)

// Postgres implementa Store em banco Postgres.
// As transições críticas (débito, liquidação de aposta, placar) são UPDATEs condicionais,
// então as garantias valem também entre processos.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna o store Postgres; o schema é criado por db.Migrate
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var _ Store = (*Postgres)(nil)

// Ping é usado pelo /healthz
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

type scanner interface{ Scan(dest ...any) error }

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ===== users

const userCols = `id, username, coins, total_bets, total_winnings, biggest_win, joined_at`

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	if err := s.Scan(&u.ID, &u.Username, &u.Coins, &u.Stats.TotalBets, &u.Stats.TotalWinnings, &u.Stats.BiggestWin, &u.JoinedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *model.User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (`+userCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Username, u.Coins, u.Stats.TotalBets, u.Stats.TotalWinnings, u.Stats.BiggestWin, u.JoinedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %q: %w", u.Username, model.ErrUsernameTaken)
	}
	return err
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(p.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", id)
	}
	return u, err
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(p.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username=$1`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", username)
	}
	return u, err
}

func (p *Postgres) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Debit usa lock pessimista na linha do usuário, como a reserva da carteira
func (p *Postgres) Debit(ctx context.Context, userID string, amount int64) (*model.User, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var coins int64
	err = tx.QueryRowContext(ctx, `SELECT coins FROM users WHERE id=$1 FOR UPDATE`, userID).Scan(&coins)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", userID)
	}
	if err != nil {
		return nil, err
	}
	if amount > coins {
		return nil, model.ErrInsufficientFunds
	}

	u, err := scanUser(tx.QueryRowContext(ctx, `
		UPDATE users SET coins = coins - $1, total_bets = total_bets + 1
		WHERE id=$2
		RETURNING `+userCols, amount, userID))
	if err != nil {
		return nil, err
	}
	return u, tx.Commit()
}

func (p *Postgres) Credit(ctx context.Context, userID string, amount int64) (*model.User, error) {
	u, err := scanUser(p.db.QueryRowContext(ctx, `
		UPDATE users SET
		  coins          = coins + $1,
		  total_winnings = total_winnings + $1,
		  biggest_win    = GREATEST(biggest_win, $1)
		WHERE id=$2
		RETURNING `+userCols, amount, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", userID)
	}
	return u, err
}

func (p *Postgres) Refund(ctx context.Context, userID string, amount int64) (*model.User, error) {
	u, err := scanUser(p.db.QueryRowContext(ctx, `
		UPDATE users SET coins = coins + $1, total_bets = GREATEST(total_bets - 1, 0)
		WHERE id=$2
		RETURNING `+userCols, amount, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", userID)
	}
	return u, err
}

// ===== bets

const betCols = `id, user_id, stake, combined_odds, potential_win, status, league_ids, placed_at, settled_at`

func scanBet(s scanner) (*model.Bet, error) {
	var (
		b         model.Bet
		status    string
		leagueIDs pq.StringArray
		settledAt sql.NullTime
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.Stake, &b.CombinedOdds, &b.PotentialWin, &status, &leagueIDs, &b.PlacedAt, &settledAt); err != nil {
		return nil, err
	}
	b.Status = model.BetStatus(status)
	b.LeagueIDs = []string(leagueIDs)
	if settledAt.Valid {
		t := settledAt.Time
		b.SettledAt = &t
	}
	return &b, nil
}

// CreateBet grava aposta e pernas na mesma transação.
// O FOR SHARE nos jogos serializa a aposta com o FinishMatch de outro processo.
func (p *Postgres) CreateBet(ctx context.Context, b *model.Bet) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockOpenMatches(ctx, tx, b.MatchIDs()); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO bets (`+betCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULL)`,
		b.ID, b.UserID, b.Stake, b.CombinedOdds, b.PotentialWin, string(b.Status), pq.Array(b.LeagueIDs), b.PlacedAt,
	); err != nil {
		return err
	}

	for i, l := range b.Legs {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO bet_legs (bet_id, idx, match_id, market, selection, odds)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			b.ID, i, l.MatchID, l.Market, l.Selection, l.Odds,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func lockOpenMatches(ctx context.Context, tx *sql.Tx, matchIDs []string) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, status FROM matches
		WHERE id = ANY($1)
		ORDER BY id
		FOR SHARE`, pq.Array(matchIDs))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return err
		}
		if model.MatchStatus(status) == model.MatchFinished {
			return fmt.Errorf("match %q: %w", id, model.ErrMatchClosed)
		}
	}
	return rows.Err()
}

// loadLegs preenche as pernas de um lote de apostas com uma única query
func (p *Postgres) loadLegs(ctx context.Context, bets []*model.Bet) error {
	if len(bets) == 0 {
		return nil
	}
	ids := make([]string, len(bets))
	byID := make(map[string]*model.Bet, len(bets))
	for i, b := range bets {
		ids[i] = b.ID
		byID[b.ID] = b
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT bet_id, match_id, market, selection, odds
		FROM bet_legs
		WHERE bet_id = ANY($1)
		ORDER BY bet_id, idx`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			betID string
			l     model.Leg
		)
		if err := rows.Scan(&betID, &l.MatchID, &l.Market, &l.Selection, &l.Odds); err != nil {
			return err
		}
		if b, ok := byID[betID]; ok {
			b.Legs = append(b.Legs, l)
		}
	}
	return rows.Err()
}

func (p *Postgres) queryBets(ctx context.Context, q string, args ...any) ([]*model.Bet, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var out []*model.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	return out, p.loadLegs(ctx, out)
}

func (p *Postgres) GetBet(ctx context.Context, id string) (*model.Bet, error) {
	bets, err := p.queryBets(ctx, `SELECT `+betCols+` FROM bets WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	if len(bets) == 0 {
		return nil, notFound("bet", id)
	}
	return bets[0], nil
}

// PendingForMatch usa EXISTS para não repetir apostas com várias pernas no mesmo jogo
func (p *Postgres) PendingForMatch(ctx context.Context, matchID string) ([]*model.Bet, error) {
	return p.queryBets(ctx, `
		SELECT `+betCols+`
		FROM bets b
		WHERE b.status = 'pending'
		  AND EXISTS (SELECT 1 FROM bet_legs l WHERE l.bet_id = b.id AND l.match_id = $1)
		ORDER BY b.placed_at, b.id`, matchID)
}

func (p *Postgres) BetsByUser(ctx context.Context, userID string) ([]*model.Bet, error) {
	return p.queryBets(ctx, `
		SELECT `+betCols+` FROM bets
		WHERE user_id=$1
		ORDER BY placed_at DESC, id`, userID)
}

// SettleBet: o WHERE status='pending' é o compare-and-set; o crédito do prêmio
// roda na mesma transação, então aposta ganha e saldo nunca divergem.
func (p *Postgres) SettleBet(ctx context.Context, id string, to model.BetStatus, at time.Time) (*model.Bet, *model.User, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	b, err := scanBet(tx.QueryRowContext(ctx, `
		UPDATE bets SET status=$1, settled_at=$2
		WHERE id=$3 AND status='pending'
		RETURNING `+betCols, string(to), at, id))
	if errors.Is(err, sql.ErrNoRows) {
		if _, gerr := p.GetBet(ctx, id); gerr != nil {
			return nil, nil, gerr
		}
		return nil, nil, fmt.Errorf("bet %q: %w", id, model.ErrAlreadySettled)
	}
	if err != nil {
		return nil, nil, err
	}

	var u *model.User
	if to == model.BetWon {
		u, err = scanUser(tx.QueryRowContext(ctx, `
			UPDATE users SET
			  coins          = coins + $1,
			  total_winnings = total_winnings + $1,
			  biggest_win    = GREATEST(biggest_win, $1)
			WHERE id=$2
			RETURNING `+userCols, b.PotentialWin, b.UserID))
	} else {
		u, err = scanUser(tx.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, b.UserID))
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, notFound("user", b.UserID)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return b, u, p.loadLegs(ctx, []*model.Bet{b})
}

// ===== matches

const matchCols = `id, home_team, away_team, league, kickoff, status, score_home, score_away`

func scanMatch(s scanner) (*model.Match, error) {
	var (
		m          model.Match
		status     string
		home, away sql.NullInt64
	)
	if err := s.Scan(&m.ID, &m.HomeTeam, &m.AwayTeam, &m.League, &m.Kickoff, &status, &home, &away); err != nil {
		return nil, err
	}
	m.Status = model.MatchStatus(status)
	if home.Valid && away.Valid {
		m.Score = &model.Score{Home: int(home.Int64), Away: int(away.Int64)}
	}
	return &m, nil
}

// UpsertMatch não sobrescreve jogos já finalizados
func (p *Postgres) UpsertMatch(ctx context.Context, m *model.Match) error {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO matches (id, home_team, away_team, league, kickoff, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
		  home_team = EXCLUDED.home_team,
		  away_team = EXCLUDED.away_team,
		  league    = EXCLUDED.league,
		  kickoff   = EXCLUDED.kickoff,
		  status    = EXCLUDED.status
		WHERE matches.status <> 'finished'`,
		m.ID, m.HomeTeam, m.AwayTeam, m.League, m.Kickoff, string(m.Status),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("match %q: %w", m.ID, model.ErrAlreadySettled)
	}
	return nil
}

func (p *Postgres) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	m, err := scanMatch(p.db.QueryRowContext(ctx, `SELECT `+matchCols+` FROM matches WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("match", id)
	}
	return m, err
}

func (p *Postgres) ListMatches(ctx context.Context) ([]*model.Match, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+matchCols+` FROM matches ORDER BY kickoff, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) FinishMatch(ctx context.Context, id string, score model.Score) (*model.Match, error) {
	m, err := scanMatch(p.db.QueryRowContext(ctx, `
		UPDATE matches SET status='finished', score_home=$1, score_away=$2
		WHERE id=$3 AND status <> 'finished'
		RETURNING `+matchCols, score.Home, score.Away, id))
	if errors.Is(err, sql.ErrNoRows) {
		if _, gerr := p.GetMatch(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("match %q: %w", id, model.ErrAlreadySettled)
	}
	return m, err
}

// ===== leagues

const leagueCols = `l.id, l.name, l.description, l.creator_id, l.invite_code, l.max_members, l.created_at,
	ARRAY(SELECT user_id FROM league_members lm WHERE lm.league_id = l.id ORDER BY lm.joined_at, lm.user_id)`

func scanLeague(s scanner) (*model.League, error) {
	var (
		l       model.League
		members pq.StringArray
	)
	if err := s.Scan(&l.ID, &l.Name, &l.Description, &l.CreatorID, &l.InviteCode, &l.MaxMembers, &l.CreatedAt, &members); err != nil {
		return nil, err
	}
	l.Members = []string(members)
	return &l, nil
}

func (p *Postgres) CreateLeague(ctx context.Context, l *model.League) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO leagues (id, name, description, creator_id, invite_code, max_members, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		l.ID, l.Name, l.Description, l.CreatorID, l.InviteCode, l.MaxMembers, l.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invite code %q in use: %w", l.InviteCode, model.ErrInvalidArgument)
		}
		return err
	}
	for i, userID := range l.Members {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO league_members (league_id, user_id, joined_at) VALUES ($1,$2,$3)`,
			l.ID, userID, l.CreatedAt.Add(time.Duration(i)*time.Microsecond),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) GetLeague(ctx context.Context, id string) (*model.League, error) {
	l, err := scanLeague(p.db.QueryRowContext(ctx, `SELECT `+leagueCols+` FROM leagues l WHERE l.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("league", id)
	}
	return l, err
}

func (p *Postgres) GetLeagueByInviteCode(ctx context.Context, code string) (*model.League, error) {
	l, err := scanLeague(p.db.QueryRowContext(ctx, `SELECT `+leagueCols+` FROM leagues l WHERE l.invite_code=$1`, strings.ToUpper(code)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("league", code)
	}
	return l, err
}

// AddMember trava a liga para checar lotação sem corrida
func (p *Postgres) AddMember(ctx context.Context, leagueID, userID string) (*model.League, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var maxMembers, count int
	err = tx.QueryRowContext(ctx, `SELECT max_members FROM leagues WHERE id=$1 FOR UPDATE`, leagueID).Scan(&maxMembers)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("league", leagueID)
	}
	if err != nil {
		return nil, err
	}
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM league_members WHERE league_id=$1`, leagueID).Scan(&count); err != nil {
		return nil, err
	}

	var exists bool
	if err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM league_members WHERE league_id=$1 AND user_id=$2)`, leagueID, userID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, model.ErrAlreadyMember
	}
	if count >= maxMembers {
		return nil, model.ErrLeagueFull
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO league_members (league_id, user_id, joined_at) VALUES ($1,$2,NOW())`, leagueID, userID); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return p.GetLeague(ctx, leagueID)
}

func (p *Postgres) LeaguesForUser(ctx context.Context, userID string) ([]*model.League, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+leagueCols+`
		FROM leagues l
		JOIN league_members m ON m.league_id = l.id
		WHERE m.user_id = $1
		ORDER BY l.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.League
	for rows.Next() {
		l, err := scanLeague(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
